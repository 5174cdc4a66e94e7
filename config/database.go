package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDatabase(cfg DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Adapter {
	case "sqlite":
		dialector = sqlite.Open(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.Path))
	case "postgres", "":
		sslmode := "require"
		if cfg.SSLMode == "disable" {
			sslmode = "disable"
		}

		dsn := "host=" + cfg.Host +
			" port=" + cfg.Port +
			" user=" + cfg.User +
			" password=" + cfg.Pass +
			" dbname=" + cfg.Name +
			" sslmode=" + sslmode

		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database adapter %q", cfg.Adapter)
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second,   // Slow SQL threshold
			LogLevel:                  logger.Silent, // Log level
			IgnoreRecordNotFoundError: true,          // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,         // Disable color
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 newLogger,
	})

	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if cfg.Adapter == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY between them
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}

	return db, nil
}
