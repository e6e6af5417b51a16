package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rescp17/relayFileSharer/internal/util"
	"github.com/rescp17/relayFileSharer/pkg/ui"
)

func main() {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "relayshare",
		Short: "Send a file to another machine through a relay server",
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	clientFlagSet := func(c *cobra.Command) {
		c.Flags().StringVar(&flags.server, "server", defaultServer, "Relay server address (env "+envServerName+")")
		c.Flags().IntVar(&flags.chunkSize, "chunk-size", 0, "Chunk size in bytes (env "+envChunkSizeName+")")
		c.Flags().DurationVar(&flags.inactivityTimeout, "inactivity-timeout", 30*time.Second, "Fail a stalled transfer after this long, 0 disables")
		c.Flags().BoolVar(&flags.discover, "discover", false, "Find a relay on the local network with mDNS")
	}

	sendCmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Share a file through a new room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, isDir, err := util.CheckDirectory(args[0])
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("file %s does not exist", args[0])
			}
			if isDir {
				return fmt.Errorf("%s is a directory, only single files can be sent", args[0])
			}
			return runClient(cmd, flags, ui.Sender, ui.Options{Path: args[0]})
		},
	}
	clientFlagSet(sendCmd)

	receiveCmd := &cobra.Command{
		Use:   "receive [code|link]",
		Short: "Join a room and receive a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				code = args[0]
			}
			return runClient(cmd, flags, ui.Receiver, ui.Options{Code: code})
		},
	}
	clientFlagSet(receiveCmd)
	receiveCmd.Flags().StringVar(&flags.out, "out", ".", "Directory to save received files in")

	var rf relayFlags
	relayCmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a relay server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), flags.logLevel, rf)
		},
	}
	relayCmd.Flags().IntVar(&rf.port, "port", 8080, "Port to listen on")
	relayCmd.Flags().BoolVar(&rf.announce, "announce", true, "Announce the relay on the local network with mDNS")
	relayCmd.Flags().StringVar(&rf.name, "name", "", "mDNS instance name (defaults to the hostname)")

	cmd.AddCommand(sendCmd, receiveCmd, relayCmd)

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}
