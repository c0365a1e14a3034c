package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"influnest/internal/auth"
	"influnest/internal/config"
	"influnest/internal/escrow"
	"influnest/internal/ledger"
	"influnest/internal/models"
	"influnest/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
)

var (
	// Global flags
	databaseURL string
	verbose     bool

	// sign flags
	secret string
	body   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "influnestctl",
	Short: "Operator tooling for the InfluNest escrow service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		if databaseURL == "" {
			databaseURL = config.Load().DatabaseURL
		}
		return nil
	},
}

// keygenCmd creates a fresh account keypair
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new account keypair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := keypair.Random()
		if err != nil {
			return fmt.Errorf("failed to generate keypair: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "address: %s\nsecret:  %s\n", kp.Address(), kp.Seed())
		return nil
	},
}

// vaultCmd prints the escrow vault address of a campaign
var vaultCmd = &cobra.Command{
	Use:   "vault <influencer> <created_at>",
	Short: "Derive the escrow vault address of a campaign",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := models.ParseCampaignKey(args[0], args[1])
		if err != nil {
			return err
		}
		vault, err := escrow.VaultFor(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), vault.Address)
		return nil
	},
}

// signCmd prints the authentication headers for one API request
var signCmd = &cobra.Command{
	Use:   "sign <method> <path>",
	Short: "Print signed authentication headers for an API request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if secret == "" {
			secret = os.Getenv("INFLUNEST_SECRET")
		}
		kp, err := keypair.ParseFull(secret)
		if err != nil {
			return fmt.Errorf("invalid secret seed: %w", err)
		}

		method := strings.ToUpper(args[0])
		req, err := http.NewRequest(method, args[1], strings.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		if err := auth.SignRequest(kp, req, []byte(body), time.Now()); err != nil {
			return err
		}

		for _, h := range []string{auth.HeaderAccount, auth.HeaderTimestamp, auth.HeaderSignature} {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", h, req.Header.Get(h))
		}
		return nil
	},
}

// migrateCmd applies the database schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.Close()

		if err := repo.Migrate(cmd.Context()); err != nil {
			return err
		}
		slog.Info("✅ Schema applied")
		return nil
	},
}

// creditCmd mints balance into a ledger account, for development networks
var creditCmd = &cobra.Command{
	Use:   "credit <account> <amount>",
	Short: "Credit a ledger account (development only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := models.ParseIdentity(args[0])
		if err != nil {
			return err
		}
		var amount uint64
		if _, err := fmt.Sscan(args[1], &amount); err != nil || amount == 0 {
			return fmt.Errorf("invalid amount: %s", args[1])
		}

		repo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.Close()

		l := ledger.NewPostgresLedger(repo.Pool())
		if err := l.Credit(cmd.Context(), account, amount); err != nil {
			return err
		}
		balance, err := l.Balance(cmd.Context(), account)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s balance: %d\n", account, balance)
		return nil
	},
}

// balanceCmd prints a ledger balance
var balanceCmd = &cobra.Command{
	Use:   "balance <account>",
	Short: "Show the ledger balance of an account or vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, err := parseAccount(args[0])
		if err != nil {
			return err
		}

		repo, err := openRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.Close()

		balance, err := ledger.NewPostgresLedger(repo.Pool()).Balance(cmd.Context(), account)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), balance)
		return nil
	},
}

func openRepository(ctx context.Context) (*storage.PostgresRepository, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is required (--database-url or DATABASE_URL)")
	}
	return storage.NewPostgresRepository(ctx, databaseURL)
}

// parseAccount accepts account addresses and contract addresses of vaults
func parseAccount(s string) (models.Identity, error) {
	if id, err := models.ParseIdentity(s); err == nil {
		return id, nil
	}
	if _, err := strkey.Decode(strkey.VersionByteContract, s); err != nil {
		return models.UnsetIdentity, fmt.Errorf("invalid account or vault address: %s", s)
	}
	return models.Identity(s), nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	signCmd.Flags().StringVar(&secret, "secret", "", "Secret seed of the signing account (default $INFLUNEST_SECRET)")
	signCmd.Flags().StringVar(&body, "body", "", "Exact request body to sign")

	rootCmd.AddCommand(keygenCmd, vaultCmd, signCmd, migrateCmd, creditCmd, balanceCmd)
}
