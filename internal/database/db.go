package database

import (
	"context"
	"docqa/config"
	"docqa/internal/database/model"
	"docqa/pkg/logger"
	"errors"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

var (
	DB *gorm.DB
	mu sync.Mutex
)

// connect opens the DB and applies pool configuration
func connect() (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(config.Cfg.Dns), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if replicas := config.Cfg.Database.Replicas; len(replicas) > 0 {
		dialectors := make([]gorm.Dialector, 0, len(replicas))
		for _, dsn := range replicas {
			dialectors = append(dialectors, mysql.Open(dsn))
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: dialectors,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(config.Cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.Cfg.Database.MaxOpenConns)
	lifetime := time.Duration(config.Cfg.Database.MaxLifetime) * time.Minute
	sqlDB.SetConnMaxIdleTime(lifetime)
	sqlDB.SetConnMaxLifetime(lifetime)

	return db, nil
}

// Init connects and migrates the documents, chunks and messages tables.
func Init() error {
	db, err := GetDB()
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&model.Document{}, &model.Chunk{}, &model.Message{}); err != nil {
		logger.Error(err, "%v: auto migrate failed", config.ModuleDatabase)
		return err
	}
	return nil
}

// ensureConnection verifies DB connectivity and reconnects if needed
func ensureConnection() error {
	mu.Lock()
	defer mu.Unlock()

	if DB == nil {
		newDB, err := connect()
		if err != nil {
			logger.Error(err, "%v: failed to ensure connection", config.ModuleDatabase)
			return err
		}
		DB = newDB
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		logger.Error(err, "%v: failed to get database connection", config.ModuleDatabase)
		return err
	}
	if err := sqlDB.Ping(); err != nil {
		newDB, err := connect()
		if err != nil {
			logger.Error(err, "%v: failed to reconnect", config.ModuleDatabase)
			return err
		}
		DB = newDB
	}
	return nil
}

// GetDB returns a healthy *gorm.DB, attempting reconnect if necessary
func GetDB() (*gorm.DB, error) {
	if err := ensureConnection(); err != nil {
		return nil, err
	}
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	return DB, nil
}

// Ping checks the primary connection within ctx.
func Ping(ctx context.Context) error {
	db, err := GetDB()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
