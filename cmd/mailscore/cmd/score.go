package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/mailscore/internal/core/logger"
)

var (
	scoreSync    bool
	scorePersist bool
	scoreSort    string
)

var scoreCmd = &cobra.Command{
	Use:   "score <maildir>",
	Short: "Score every message of a Maildir",
	Long: `Score loads the rules from the configuration and the rules file, rescores
the Maildir and prints one line per message. Threshold actions set the
deleted, read and flagged flags; --sync writes them back to the file names.`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().BoolVar(&scoreSync, "sync", false, "write changed flags back to the Maildir")
	scoreCmd.Flags().BoolVar(&scorePersist, "persist", false, "store scores in the database")
	scoreCmd.Flags().StringVar(&scoreSort, "sort", "", "sort key (date, score, subject, from, size, received, threads, unsorted)")
}

func runScore(cmd *cobra.Command, args []string) error {
	log := logger.Get()
	c, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}

	mb, err := openMailbox(args[0], scoreSort, log)
	if err != nil {
		return err
	}
	c.engine.Rescore(mb)
	mb.Resort()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, e := range mb.Emails() {
		printMessage(w, e)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if scoreSync {
		n, err := mb.Sync()
		if err != nil {
			return fmt.Errorf("failed to sync flags: %w", err)
		}
		log.Info("maildir flags synced", "renamed", n)
	}

	if scorePersist {
		database, queries, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := queries.SaveScores(mb.Path(), mb.Emails(), time.Now()); err != nil {
			return err
		}
		log.Info("scores stored", "mailbox", mb.Path(), "messages", mb.Len())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d messages, %d deleted, %d flagged, %d unread\n",
		mb.Len(), mb.Deleted(), mb.Flagged(), mb.Unread())
	return nil
}
