package migration

import (
	"fmt"

	"go.uber.org/zap"

	appconfig "github.com/BaSui01/docflow/config"
)

// NewMigratorFromDatabaseConfig creates a migrator from database configuration.
func NewMigratorFromDatabaseConfig(dbCfg appconfig.DatabaseConfig, logger *zap.Logger) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}

	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  DatabaseURLFromConfig(dbType, dbCfg),
		TableName:    "schema_migrations",
		Logger:       logger,
	})
}

// DatabaseURLFromConfig 按方言从数据库配置拼接迁移连接 URL（sqlite 的 Name 为文件路径）
func DatabaseURLFromConfig(dbType DatabaseType, dbCfg appconfig.DatabaseConfig) string {
	switch dbType {
	case DatabaseTypeSQLite:
		return BuildDatabaseURL(dbType, "", 0, dbCfg.Name, "", "", "")
	case DatabaseTypeMySQL:
		return BuildDatabaseURL(dbType, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, "")
	default:
		return BuildDatabaseURL(dbType, dbCfg.Host, dbCfg.Port, dbCfg.Name, dbCfg.User, dbCfg.Password, dbCfg.SSLMode)
	}
}

// NewMigratorFromURL creates a new migrator from a database URL
func NewMigratorFromURL(dbType, dbURL string, logger *zap.Logger) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}

	return NewMigrator(&Config{
		DatabaseType: dt,
		DatabaseURL:  dbURL,
		TableName:    "schema_migrations",
		Logger:       logger,
	})
}
