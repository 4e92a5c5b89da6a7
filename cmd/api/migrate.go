package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/config"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/postgres"
)

type migrateOptions struct {
	envFile string
	path    string
}

func newMigrateCommand() *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "データベースマイグレーションを操作する",
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "読み込む .env ファイル")
	cmd.PersistentFlags().StringVar(&opts.path, "path", "", "マイグレーションのディレクトリ。未指定なら DB_MIGRATIONS_PATH")

	cmd.AddCommand(&cobra.Command{
		Use:          "up",
		Short:        "未適用のマイグレーションをすべて適用する",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(opts, func(db *sqlx.DB, path string) error {
				if err := postgres.RunMigrations(db.DB, path); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "マイグレーションを適用しました")
				return nil
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:          "down",
		Short:        "直近のマイグレーションを戻す",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(opts, func(db *sqlx.DB, path string) error {
				if err := postgres.RollbackMigrations(db.DB, path, steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d 件のマイグレーションを戻しました\n", max(steps, 1))
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "戻す件数")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:          "version",
		Short:        "現在のスキーマバージョンを表示する",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(opts, func(db *sqlx.DB, path string) error {
				version, dirty, err := postgres.MigrationVersion(db.DB, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

func withDB(opts *migrateOptions, fn func(db *sqlx.DB, path string) error) error {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return fmt.Errorf(".env の読み込みに失敗: %w", err)
	}
	cfg := config.Load()
	path := opts.path
	if path == "" {
		path = cfg.Database.MigrationsPath
	}

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db, path)
}
