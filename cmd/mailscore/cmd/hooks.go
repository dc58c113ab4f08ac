package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/mailscore/internal/core/logger"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks <maildir>",
	Short: "Show which hooks fire for each message",
	Args:  cobra.ExactArgs(1),
	RunE:  runHooks,
}

func init() {
	rootCmd.AddCommand(hooksCmd)
}

func runHooks(cmd *cobra.Command, args []string) error {
	log := logger.Get()
	c, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}

	mb, err := openMailbox(args[0], "", log)
	if err != nil {
		return err
	}
	c.engine.Rescore(mb)

	out := cmd.OutOrStdout()
	for _, e := range mb.Emails() {
		fmt.Fprintf(out, "%d %s\n", e.Number(), e.Envelope().Subject)
		if save, ok := c.hooks.FindSave(e); ok {
			fmt.Fprintf(out, "  save-hook: %s\n", save)
		}
		if fcc, ok := c.hooks.FindFcc(e); ok {
			fmt.Fprintf(out, "  fcc-hook: %s\n", fcc)
		}
		if cmds := c.hooks.MessageHooks(e); len(cmds) > 0 {
			fmt.Fprintf(out, "  message-hook: %s\n", strings.Join(cmds, "; "))
		}
		if cmds := c.hooks.SendHooks(e); len(cmds) > 0 {
			fmt.Fprintf(out, "  send-hook: %s\n", strings.Join(cmds, "; "))
		}
	}
	return nil
}
