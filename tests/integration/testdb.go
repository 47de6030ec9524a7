// Package integration runs the repository and resolution-flow tests
// against a real PostgreSQL instance started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// One container serves the whole package. Each test gets its own gorm
// session and truncates the tables it touches, which is far cheaper
// than a container per test.
var shared struct {
	mu        sync.Mutex
	container testcontainers.Container
	dsn       string
}

// TestDB is a connection to the shared migrated test database.
type TestDB struct {
	DB *gorm.DB
	t  *testing.T

	sqlDB *sql.DB
}

// NewSharedTestDB starts the package-level postgres container on first
// use, runs the migrations against it, and returns a fresh connection.
// The connection is closed in t.Cleanup; the container stays up until
// CleanupSharedContainer runs from TestMain.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.container == nil {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("commission_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("admin123"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "starting postgres container")

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "reading container connection string")

		_, sqlDB := connect(t, dsn)
		applyMigrations(t, sqlDB)
		sqlDB.Close()

		shared.container = container
		shared.dsn = dsn
	}

	db, sqlDB := connect(t, shared.dsn)
	tdb := &TestDB{DB: db, t: t, sqlDB: sqlDB}
	t.Cleanup(func() { tdb.sqlDB.Close() })
	return tdb
}

// CleanTables truncates every table except schema_migrations and the
// seeded membership_discounts, so each test starts from the migrated
// baseline.
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.DB.Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename NOT IN ('schema_migrations', 'membership_discounts')
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "listing tables")

	for _, table := range tables {
		err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error
		require.NoError(tdb.t, err, "truncating %s", table)
	}
}

// CleanupSharedContainer terminates the package container. TestMain
// calls it after the run.
func CleanupSharedContainer() {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shared.container.Terminate(ctx)
		shared.container = nil
		shared.dsn = ""
	}
}

func connect(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), cfg)
	require.NoError(t, err, "connecting to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "unwrapping sql.DB")
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

func applyMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	path := migrationsDir()
	require.NotEmpty(t, path, "migrations directory not found")

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	require.NoError(t, err, "creating migration driver")

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	require.NoError(t, err, "creating migrate instance")

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "applying migrations")
	}
}

// migrationsDir walks up from this file towards the repository root
// looking for the migrations directory.
func migrationsDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}

	dir := filepath.Dir(filename)
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "migrations")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	return ""
}
