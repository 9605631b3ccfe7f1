package main

import (
	"github.com/BioHazard786/Meshdrop/cmd"
	"github.com/BioHazard786/Meshdrop/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
