package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/vrash12/marcy/internal/config"
)

//go:embed migrations
var migrations embed.FS

// Driver names as registered with database/sql.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DSN builds the driver specific connection string.
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Name
		mc.ParseTime = true
		mc.MultiStatements = true
		mc.Timeout = cfg.ConnectTimeout
		if !cfg.SSLDisabled {
			mc.TLSConfig = "preferred"
		}
		return mc.FormatDSN(), nil
	case DriverPostgres:
		sslmode := "require"
		if cfg.SSLDisabled {
			sslmode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslmode, int(cfg.ConnectTimeout/time.Second)), nil
	case DriverSQLite:
		return cfg.Path, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewDB establishes a new connection to the questionnaire database and
// fails if it cannot be reached.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := Ping(ctx, db, cfg); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Successfully connected to the database!", zap.String("driver", cfg.Driver))
	return db, nil
}

// OpenDB configures the connection pool without contacting the server.
// Connections are made on first use.
func OpenDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == DriverSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// Ping checks the database answers within cfg.ConnectTimeout.
func Ping(ctx context.Context, db *sqlx.DB, cfg config.DatabaseConfig) error {
	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to reach %s database: %w", cfg.Driver, err)
	}
	return nil
}

// MigrateDB creates the questionnaire schema used by the seeder and tests.
// Production databases are owned elsewhere and are never migrated on start.
func MigrateDB(db *sqlx.DB, logger *zap.Logger) error {
	var (
		driver database.Driver
		err    error
	)
	switch db.DriverName() {
	case DriverMySQL:
		driver, err = migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	case DriverPostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	case DriverSQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	default:
		return fmt.Errorf("no migrations for driver %q", db.DriverName())
	}
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	src, err := iofs.New(migrations, "migrations/"+db.DriverName())
	if err != nil {
		return fmt.Errorf("couldn't open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	logger.Info("Database migration was run successfully")
	return nil
}
