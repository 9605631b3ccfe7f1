package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Meshdrop/internal/ui"
	"github.com/BioHazard786/Meshdrop/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "meshdrop",
	Short: "Multi-party WebRTC rendezvous: a signaling relay and a mesh room client",
	Long: `Meshdrop connects any number of peers in a named room. The relay only
carries negotiation messages (offers, answers, ICE candidates) and room
membership; once peers are linked, data flows directly between them over
WebRTC data channels.

Run a relay with "meshdrop serve", then join rooms with "meshdrop join".`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
