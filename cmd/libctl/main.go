// Command libctl is the operator tool for a school library database:
// apply migrations, mint API tokens and print lending statistics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aoideee/school-library/internal/auth"
	"github.com/aoideee/school-library/internal/config"
	"github.com/aoideee/school-library/internal/data"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	driver string
	dsn    string
	school config.School
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLevel(os.Getenv("LOG_LEVEL")),
	}))
	config.LoadEnv(logger)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{school: config.SchoolFromEnv()}

	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Manage a school library database",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.driver, "db-driver", config.GetEnv("DB_DRIVER", data.DriverSQLite), "database driver (sqlite3|postgres)")
	pf.StringVar(&opts.dsn, "db-dsn", config.GetEnv("DB_DSN", ""), "database file or DSN; defaults to ./<school-code>-library.db")
	pf.StringVar(&opts.school.Code, "school-code", opts.school.Code, "school code")

	root.AddCommand(
		newMigrateCmd(opts),
		newTokenCmd(opts),
		newStatsCmd(opts),
	)
	return root
}

// open connects to the configured database. OpenDB also migrates it.
func (o *globalOptions) open(ctx context.Context) (*data.Models, func(), error) {
	dsn := o.dsn
	if dsn == "" && o.driver == data.DriverSQLite {
		dsn = o.school.DefaultDSN()
	}
	db, err := data.OpenDB(ctx, data.DBConfig{Driver: o.driver, DSN: dsn})
	if err != nil {
		return nil, nil, err
	}
	models := data.NewModels(db, nil)
	return &models, func() { db.Close() }, nil
}

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, closeDB, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			version, err := data.SchemaVersion(cmd.Context(), models.Catalog.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func newTokenCmd(opts *globalOptions) *cobra.Command {
	var (
		user   string
		role   string
		ttl    time.Duration
		secret string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API write endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("no signing secret: set JWT_SECRET or pass --secret")
			}
			tok, err := auth.NewTokenManager(secret, "").GenerateToken(user, role, opts.school.Code, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id recorded in the token")
	cmd.Flags().StringVar(&role, "role", auth.RoleLibrarian, "librarian|staff|principal")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", config.GetEnv("JWT_SECRET", ""), "HS256 signing secret")
	cobra.CheckErr(cmd.MarkFlagRequired("user"))
	return cmd
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print borrowing statistics from the history log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, closeDB, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			stats, err := models.History.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-16s %d\n", "Total borrows", stats.TotalBorrows)
			fmt.Fprintf(out, "%-16s %d\n", "Active borrows", stats.ActiveBorrows)
			fmt.Fprintf(out, "%-16s %d\n", "Total returns", stats.TotalReturns)
			fmt.Fprintf(out, "%-16s %d\n", "Average days", stats.AverageDays)
			return nil
		},
	}
}
