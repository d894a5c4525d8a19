package db

import (
	"fmt"

	"github.com/ikkim/storefront-sync/config"
	appLogger "github.com/ikkim/storefront-sync/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the gorm-backed cache store selected by cacheCfg.Driver.
func Open(cacheCfg *config.CacheConfig, dbCfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	maxOpen := 20

	switch cacheCfg.Driver {
	case config.CacheDriverSQLite:
		appLogger.Info("Opening sqlite cache", map[string]interface{}{
			"path": cacheCfg.Path,
		})
		dialector = sqlite.Open(cacheCfg.Path + "?_busy_timeout=5000&_journal_mode=WAL")
		// sqlite allows one writer; a single connection keeps writes ordered
		maxOpen = 1
	case config.CacheDriverPostgres:
		appLogger.Info("Connecting to database", map[string]interface{}{
			"host":     dbCfg.Host,
			"port":     dbCfg.Port,
			"database": dbCfg.DBName,
			"user":     dbCfg.User,
		})
		dialector = postgres.Open(dbCfg.DSN())
	default:
		return nil, fmt.Errorf("cache driver %q is not backed by a database", cacheCfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Use silent mode, we'll use our own logger
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetMaxOpenConns(maxOpen)

	appLogger.Info("Database connection established successfully", map[string]interface{}{
		"driver":         cacheCfg.Driver,
		"max_open_conns": maxOpen,
	})
	return db, nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
