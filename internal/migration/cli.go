package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// CLI 将迁移器的结果输出为 docflow migrate 子命令的人类可读文本
type CLI struct {
	migrator Migrator
	output   io.Writer
}

// NewCLI 创建 CLI，默认输出到 stdout
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, output: os.Stdout}
}

// SetOutput 重定向输出（cobra 命令传入 cmd.OutOrStdout()）
func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.output, format, args...)
}

// apply 执行一次变更型迁移并回显当前版本
func (c *CLI) apply(ctx context.Context, banner, failure string, fn func(context.Context) error) error {
	c.printf("%s\n", banner)
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", failure, err)
	}
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	c.printf("Done. Current version: %d%s\n", info.CurrentVersion, dirtySuffix(info.Dirty))
	return nil
}

// =============================================================================
// 🔼 变更
// =============================================================================

// RunUp 应用全部待执行迁移
func (c *CLI) RunUp(ctx context.Context) error {
	return c.apply(ctx, "Applying pending docflow schema migrations...", "migration failed", c.migrator.Up)
}

// RunDown 回滚最近一次迁移
func (c *CLI) RunDown(ctx context.Context) error {
	return c.apply(ctx, "Rolling back last migration...", "rollback failed", c.migrator.Down)
}

// RunDownAll 回滚全部迁移（artifacts/feedback 表将被删除）
func (c *CLI) RunDownAll(ctx context.Context) error {
	c.printf("Rolling back all migrations...\n")
	if err := c.migrator.DownAll(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	c.printf("All migrations rolled back.\n")
	return nil
}

// RunSteps n>0 前进，n<0 回退
func (c *CLI) RunSteps(ctx context.Context, n int) error {
	banner := fmt.Sprintf("Applying %d migration(s)...", n)
	if n < 0 {
		banner = fmt.Sprintf("Rolling back %d migration(s)...", -n)
	}
	return c.apply(ctx, banner, "migration steps failed", func(ctx context.Context) error {
		return c.migrator.Steps(ctx, n)
	})
}

// RunGoto 迁移到指定版本
func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	return c.apply(ctx, fmt.Sprintf("Migrating to version %d...", version), "migration failed", func(ctx context.Context) error {
		return c.migrator.Goto(ctx, version)
	})
}

// RunForce 强制设置版本并清除 dirty 标记，不执行 SQL
func (c *CLI) RunForce(ctx context.Context, version int) error {
	return c.apply(ctx, fmt.Sprintf("Forcing version to %d...", version), "force failed", func(ctx context.Context) error {
		return c.migrator.Force(ctx, version)
	})
}

// =============================================================================
// 🔍 查询
// =============================================================================

// RunVersion 输出当前版本
func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	if version == 0 {
		c.printf("No migrations applied yet.\n")
		return nil
	}
	c.printf("Current version: %d%s\n", version, dirtySuffix(dirty))
	return nil
}

// RunStatus 按版本列出迁移及其状态，末尾附汇总
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if len(statuses) == 0 {
		c.printf("No migrations found.\n")
		return nil
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, s := range statuses {
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, statusLabel(s))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	c.printf("\nTotal: %d, Applied: %d, Pending: %d\n",
		info.TotalMigrations, info.AppliedMigrations, info.PendingMigrations)
	return nil
}

// RunInfo 输出迁移详情
func (c *CLI) RunInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get info: %w", err)
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 1, ' ', 0)
	fmt.Fprintln(w, "Migration Information:")
	fmt.Fprintf(w, "  Current Version:\t%d\n", info.CurrentVersion)
	fmt.Fprintf(w, "  Dirty:\t%v\n", info.Dirty)
	fmt.Fprintf(w, "  Total Migrations:\t%d\n", info.TotalMigrations)
	fmt.Fprintf(w, "  Applied Migrations:\t%d\n", info.AppliedMigrations)
	fmt.Fprintf(w, "  Pending Migrations:\t%d\n", info.PendingMigrations)
	return w.Flush()
}

func statusLabel(s MigrationStatus) string {
	switch {
	case s.Dirty:
		return "Dirty"
	case s.Applied:
		return "Applied"
	default:
		return "Pending"
	}
}

func dirtySuffix(dirty bool) string {
	if dirty {
		return " (dirty)"
	}
	return ""
}
