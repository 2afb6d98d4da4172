package database

import (
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	DB   *gorm.DB
	once sync.Once
)

// Connect opens the shared postgres pool once per process.
func Connect(dsn string, debug bool) (*gorm.DB, error) {
	var err error
	once.Do(func() {
		logLevel := gormlogger.Warn
		if debug {
			logLevel = gormlogger.Info
		}

		var db *gorm.DB
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(logLevel),
		})
		if err != nil {
			err = fmt.Errorf("failed to connect database: %w", err)
			return
		}

		DB = db
	})
	if err != nil {
		return nil, err
	}
	if DB == nil {
		return nil, fmt.Errorf("database connection was not initialised")
	}

	return DB, nil
}
