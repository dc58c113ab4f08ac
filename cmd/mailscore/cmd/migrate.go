package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/mailscore/internal/core/db"
	"github.com/solatis/mailscore/internal/core/logger"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|status]",
	Short:     "Apply or list database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "status"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 && args[0] == "status" {
		statuses, err := db.MigrateStatus(database)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied " + s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\n", s.ID, state)
		}
		return w.Flush()
	}

	applied, err := db.MigrateUp(database)
	if err != nil {
		return err
	}
	for _, id := range applied {
		fmt.Fprintf(out, "applied %s\n", id)
	}
	logger.Info("migrations complete", "applied", len(applied))
	return nil
}
