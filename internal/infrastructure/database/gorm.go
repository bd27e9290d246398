package database

import (
	"fmt"
	"io/fs"
	"time"

	"library-services/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	Path       string
	LogQueries bool
}

// NewConnection opens a gorm connection for the configured driver.
// The memory driver has no connection and is handled by the caller.
func NewConnection(config Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case DriverPostgres, "":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s connect_timeout=10",
			config.Host, config.User, config.Password, config.DBName, config.Port, config.SSLMode)
		logger.Debug("Connecting to postgres at %s:%d/%s", config.Host, config.Port, config.DBName)
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		logger.Debug("Opening sqlite database %s", config.Path)
		dialector = sqlite.Open(config.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}

	logLevel := gormlogger.Warn
	if config.LogQueries {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if config.Driver == DriverSQLite {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY under concurrent borrows
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// Prepare brings the schema up to date: SQL migrations on postgres, AutoMigrate on sqlite.
func Prepare(db *gorm.DB, driver string, migrations fs.FS, models ...interface{}) error {
	if driver == DriverSQLite {
		if err := db.AutoMigrate(models...); err != nil {
			return fmt.Errorf("failed to auto-migrate: %w", err)
		}
		return nil
	}
	return RunMigrations(db, migrations)
}

func RunMigrations(db *gorm.DB, migrations fs.FS) error {
	logger.Info("Running SQL migrations")

	migrationRunner := NewMigrationRunner(db, migrations)
	if err := migrationRunner.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func HealthCheck(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
