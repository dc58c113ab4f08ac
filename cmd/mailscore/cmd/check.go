package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/mailscore/internal/core/metrics"
	"github.com/solatis/mailscore/internal/pattern"
)

var checkClass string

var checkCmd = &cobra.Command{
	Use:   "check <pattern>",
	Short: "Compile a pattern and print its tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkClass, "class", "all", "allowed leaves (all, headers, message, mailbox)")
}

var classNames = map[string]pattern.Class{
	"all":     pattern.ClassAll,
	"headers": pattern.ClassHeaders,
	"message": pattern.ClassFullMessage,
	"mailbox": pattern.ClassMailbox,
}

func runCheck(cmd *cobra.Command, args []string) error {
	class, ok := classNames[checkClass]
	if !ok {
		return fmt.Errorf("unknown class %q", checkClass)
	}

	p, err := pattern.Compile(args[0], class)
	if err != nil {
		metrics.PatternErrors.WithLabelValues("cli").Inc()
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), pattern.Format(p.Root))
	return nil
}
