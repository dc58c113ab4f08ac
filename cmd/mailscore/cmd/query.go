package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/mailscore/internal/core/logger"
	"github.com/solatis/mailscore/internal/core/metrics"
	"github.com/solatis/mailscore/internal/pattern"
	"github.com/solatis/mailscore/internal/types"
)

var querySort string

var queryCmd = &cobra.Command{
	Use:   "query <pattern> <maildir>",
	Short: "List the messages of a Maildir matching a pattern",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&querySort, "sort", "", "sort key (date, score, subject, from, size, received, threads, unsorted)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	log := logger.Get()
	c, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}

	p, err := pattern.Compile(args[0], pattern.ClassAll)
	if err != nil {
		metrics.PatternErrors.WithLabelValues("cli").Inc()
		return err
	}

	mb, err := openMailbox(args[1], querySort, log)
	if err != nil {
		return err
	}
	// Scores first, so ~n sees them.
	c.engine.Rescore(mb)
	mb.Resort()

	eval := pattern.NewEvaluator(c.book)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	matched := 0
	for _, e := range mb.Emails() {
		if !eval.Evaluate(p, e, pattern.MatchMailbox, nil) {
			continue
		}
		matched++
		printMessage(w, e)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	log.Info("query finished", "messages", mb.Len(), "matched", matched)
	return nil
}

func printMessage(w *tabwriter.Writer, e *types.Email) {
	env := e.Envelope()
	from := ""
	if len(env.From) > 0 {
		from = env.From[0].String()
	}
	fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
		e.Number(), env.Date.Format("2006-01-02"), e.Score(), e.Flags(), from, env.Subject)
}
