package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/mailscore/internal/core/auth"
	"github.com/solatis/mailscore/internal/core/config"
	"github.com/solatis/mailscore/internal/core/logger"
	"github.com/solatis/mailscore/internal/types"
)

var apikeySecretID string

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage scoring API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an API key; the key is printed once",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyCreate,
}

var apikeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	Args:  cobra.NoArgs,
	RunE:  runAPIKeyList,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyListCmd, apikeyRevokeCmd)
	apikeyCreateCmd.Flags().StringVar(&apikeySecretID, "secret-id", "", "HMAC secret to sign with (required when several are configured)")
}

// pickSecret selects the HMAC secret new keys are hashed with.
func pickSecret(secrets map[string][]byte, id string) (string, []byte, error) {
	if id != "" {
		secret, ok := secrets[id]
		if !ok {
			return "", nil, fmt.Errorf("secret %s not configured", id)
		}
		return id, secret, nil
	}
	switch len(secrets) {
	case 0:
		return "", nil, fmt.Errorf("no HMAC secrets configured (set MS_HMAC_SECRET environment variable)")
	case 1:
		for id, secret := range secrets {
			return id, secret, nil
		}
	}
	ids := make([]string, 0, len(secrets))
	for id := range secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return "", nil, fmt.Errorf("several HMAC secrets configured, choose one with --secret-id: %v", ids)
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	secretID, secret, err := pickSecret(secrets, apikeySecretID)
	if err != nil {
		return err
	}

	database, queries, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	key, hash, err := auth.GenerateAPIKey(secretID, secret)
	if err != nil {
		return err
	}
	id, err := queries.CreateAPIKey(args[0], secretID, hash)
	if err != nil {
		return err
	}

	logger.Info("api key created", "id", id, "name", args[0])
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}

func runAPIKeyList(cmd *cobra.Command, args []string) error {
	database, queries, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	keys, err := queries.ListAPIKeys()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, k := range keys {
		state := "active"
		if k.RevokedAt.Valid {
			state = "revoked"
		}
		lastUsed := "never"
		if k.LastUsedAt.Valid {
			lastUsed = k.LastUsedAt.Time.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.APIKeyID, k.Name, state, lastUsed)
	}
	return w.Flush()
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	database, queries, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := queries.RevokeAPIKey(types.APIKeyID(args[0])); err != nil {
		return fmt.Errorf("failed to revoke %s: %w", args[0], err)
	}
	logger.Info("api key revoked", "id", args[0])
	return nil
}
