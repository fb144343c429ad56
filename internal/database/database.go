package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rs/zerolog/log"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health() map[string]string

	// Close terminates the database connection.
	Close() error

	Queries() *Queries

	DB() *sql.DB
}

type service struct {
	db     *sql.DB
	q      *Queries
	dbFile string
}

func (s *service) Queries() *Queries {
	return s.q
}

func (s *service) DB() *sql.DB {
	return s.db
}

// NewService opens the SQLite database at dbFile and applies the schema.
// ":memory:" gives a private in-memory database, used by tests.
func NewService(ctx context.Context, dbFile string) (Service, error) {
	db, err := sql.Open("sqlite", dsn(dbFile))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbFile, err)
	}

	if isMemory(dbFile) {
		// Every new connection to :memory: is a different database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", dbFile, err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("db_file", dbFile).Msg("Connected to SQLite database")

	return &service{db: db, q: New(db), dbFile: dbFile}, nil
}

func dsn(dbFile string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !isMemory(dbFile) {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	sep := "?"
	if strings.Contains(dbFile, "?") {
		sep = "&"
	}
	return dbFile + sep + pragmas
}

func isMemory(dbFile string) bool {
	return strings.HasPrefix(dbFile, ":memory:") || strings.Contains(dbFile, "mode=memory")
}

// Health checks the health of the database connection.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error().Err(err).Msg("db down")
		return stats
	}

	dbStats := s.db.Stats()
	stats["status"] = "up"
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["max_open_connections"] = strconv.Itoa(dbStats.MaxOpenConnections)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration_ms"] = strconv.FormatInt(dbStats.WaitDuration.Milliseconds(), 10)
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.MaxOpenConnections > 0 && dbStats.InUse > dbStats.MaxOpenConnections*8/10 { // 80% capacity
		stats["message"] = "The database is experiencing heavy load."
	}
	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	log.Info().Str("db_file", s.dbFile).Msg("Disconnected from database")
	return s.db.Close()
}

// IsUniqueViolation reports whether err comes from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// sqliteTime is the layout SQLite's datetime() produces.
const sqliteTime = "2006-01-02 15:04:05"

func FormatTime(t time.Time) string {
	return t.Format(sqliteTime)
}

func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
