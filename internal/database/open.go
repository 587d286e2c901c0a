package database

import (
	"context"
	"database/sql"
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"tour-video-backend/internal/config"
	"tour-video-backend/internal/models"
)

// Models lists every table managed by AutoMigrate on SQLite.
func Models() []any {
	return []any{
		&models.User{},
		&models.Order{},
		&models.UploadedImage{},
		&models.Video{},
		&models.Feedback{},
		&models.FinalVideo{},
		&models.Notification{},
		&models.ResetToken{},
	}
}

// Open connects to Postgres when DATABASE_URL is set, otherwise to the SQLite
// file at DATABASE_PATH.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.DatabaseURL != "" {
		return OpenPostgres(ctx, cfg.DatabaseURL, logger)
	}
	return OpenSQLite(cfg.DatabasePath, logger)
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", "sqlite"), zap.String("path", path))
	}
	return db, nil
}

// OpenPostgres runs the embedded SQL migrations over lib/pq and hands the same
// connection pool to gorm.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := NewMigrator(sqlDB, logger).Run(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", "postgres"))
	}
	return db, nil
}
