package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fwojciec/dataops"
	bt "github.com/fwojciec/dataops/bubbletea"
	"github.com/fwojciec/dataops/conversation"
	"github.com/spf13/cobra"
)

var chatAgentURL string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal UI",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatAgentURL, "agent-url", "", "Use the agent backend at this URL instead of a local one")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// The UI owns the terminal; logs go to a file when verbose.
	var logw io.Writer = io.Discard
	if verbose {
		path := filepath.Join(os.TempDir(), "dataops-chat.log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logw = f
		fmt.Fprintf(os.Stderr, "Logging to %s\n", path)
	}

	agent, closeAgent, err := openAgent(ctx, chatAgentURL, logw)
	if err != nil {
		return err
	}
	defer closeAgent()

	conv := conversation.New(agent, "tui_user")
	if err := conv.Start(ctx); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if err := bt.Run(ctx, bt.New(conv, dataops.DefaultTheme())); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}
	return nil
}
