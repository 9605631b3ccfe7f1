package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Meshdrop/internal/config"
)

var (
	flagJoinName     string
	flagJoinServer   string
	flagJoinDomain   string
	flagJoinSTUN     string
	flagJoinTURN     string
	flagJoinTURNUser string
	flagJoinTURNPass string
	flagJoinRelay    bool
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a room and mesh with its peers",
	Long: `Join a named room. Every peer already present is offered a direct
WebRTC link; chat flows through the relay, direct messages over the
peer-to-peer data channels.

Examples:
  meshdrop join standup
  meshdrop join https://meshdrop.qzz.io/r/standup
  meshdrop join standup --name Alice
  meshdrop join standup --server ws://localhost:8080/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		return joinRoom(roomID)
	},
}

func init() {
	joinCmd.Flags().StringVarP(&flagJoinName, "name", "n", "", "display name announced to peers")
	joinCmd.Flags().StringVar(&flagJoinServer, "server", "", "full websocket URL of the relay (overrides --domain)")
	joinCmd.Flags().StringVar(&flagJoinDomain, "domain", "", "relay domain")
	joinCmd.Flags().StringVar(&flagJoinSTUN, "stun", "", "STUN server URL")
	joinCmd.Flags().StringVar(&flagJoinTURN, "turn", "", "TURN server URL")
	joinCmd.Flags().StringVar(&flagJoinTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagJoinTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().BoolVar(&flagJoinRelay, "relay", false, "force all traffic through the TURN relay")
	rootCmd.AddCommand(joinCmd)
}

func joinRoom(roomID string) error {
	cfg, err := config.Load(config.Options{
		Domain:     flagJoinDomain,
		STUNServer: flagJoinSTUN,
		TURNServer: flagJoinTURN,
		TURNUser:   flagJoinTURNUser,
		TURNPass:   flagJoinTURNPass,
		ForceRelay: flagJoinRelay,
	})
	if err != nil {
		return err
	}

	serverURL := cfg.WebSocketURL
	if flagJoinServer != "" {
		serverURL = flagJoinServer
	}

	name := flagJoinName
	if name == "" {
		if host, err := os.Hostname(); err == nil {
			name = host
		}
	}

	session := newRoomSession(cfg, serverURL, roomID, name)
	return session.run()
}

// parseRoomInput accepts a bare room ID or a room URL like
// https://meshdrop.qzz.io/r/standup.
func parseRoomInput(input string) (string, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("invalid room URL: %w", err)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		roomID := parts[len(parts)-1]
		if roomID == "" || roomID == "r" {
			return "", fmt.Errorf("no room ID in URL %q", input)
		}
		return roomID, nil
	}

	if input == "" {
		return "", fmt.Errorf("room ID is empty")
	}
	return input, nil
}
