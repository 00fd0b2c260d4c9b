package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/config"
	"github.com/BaSui01/docflow/internal/migration"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

// migrateFlags 迁移命令共享参数
type migrateFlags struct {
	dbType string
	dbURL  string
}

func newMigrateCommand() *cobra.Command {
	f := &migrateFlags{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long: `Manage the artifact and feedback schema.

Connection settings come from the config file unless both --db-type and
--db-url are given.`,
	}
	cmd.PersistentFlags().StringVar(&f.dbType, "db-type", "", "Database type: postgres, mysql, sqlite (default: from config)")
	cmd.PersistentFlags().StringVar(&f.dbURL, "db-url", "", "Database connection URL (default: from config)")

	var all bool
	down := f.command("down", "Rollback the last migration", cobra.NoArgs,
		func(ctx context.Context, cli *migration.CLI, _ []string) error {
			if all {
				return cli.RunDownAll(ctx)
			}
			return cli.RunDown(ctx)
		})
	down.Flags().BoolVar(&all, "all", false, "Rollback all migrations")

	cmd.AddCommand(
		f.command("up", "Apply all pending migrations", cobra.NoArgs,
			func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunUp(ctx) }),
		down,
		f.command("steps <n>", "Apply (n>0) or rollback (n<0) n migrations", cobra.ExactArgs(1),
			func(ctx context.Context, cli *migration.CLI, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q: %w", args[0], err)
				}
				return cli.RunSteps(ctx, n)
			}),
		f.command("goto <version>", "Migrate to a specific version", cobra.ExactArgs(1),
			func(ctx context.Context, cli *migration.CLI, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return cli.RunGoto(ctx, uint(v))
			}),
		f.command("force <version>", "Force set migration version (use with caution)", cobra.ExactArgs(1),
			func(ctx context.Context, cli *migration.CLI, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return cli.RunForce(ctx, v)
			}),
		f.command("status", "Show migration status", cobra.NoArgs,
			func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunStatus(ctx) }),
		f.command("version", "Show current migration version", cobra.NoArgs,
			func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunVersion(ctx) }),
		f.command("info", "Show database and migration details", cobra.NoArgs,
			func(ctx context.Context, cli *migration.CLI, _ []string) error { return cli.RunInfo(ctx) }),
	)
	return cmd
}

// command 包装子命令：创建迁移器 → 执行 → 关闭
func (f *migrateFlags) command(use, short string, args cobra.PositionalArgs, run func(context.Context, *migration.CLI, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			migrator, err := f.migrator(cmd)
			if err != nil {
				return fmt.Errorf("create migrator: %w", err)
			}
			defer migrator.Close()

			cli := migration.NewCLI(migrator)
			cli.SetOutput(cmd.OutOrStdout())
			return run(cmd.Context(), cli, argv)
		},
	}
}

// migrator 优先使用 --db-type/--db-url，否则读取配置文件
func (f *migrateFlags) migrator(cmd *cobra.Command) (*migration.DefaultMigrator, error) {
	logger := zap.NewNop()
	if f.dbType != "" && f.dbURL != "" {
		return migration.NewMigratorFromURL(f.dbType, f.dbURL, logger)
	}

	path, _ := cmd.Flags().GetString("config")
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f.dbType != "" {
		cfg.Database.Driver = f.dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
}
