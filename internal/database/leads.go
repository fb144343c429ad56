package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Lead is a landing-page form submission kept verbatim.
type Lead struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// LeadStore persists landing-form payloads in Postgres. It is optional:
// without DATABASE_URL the server runs on SQLite alone.
type LeadStore struct {
	pool *pgxpool.Pool
}

const createLeadsTable = `CREATE TABLE IF NOT EXISTS landing_leads (
	id BIGSERIAL PRIMARY KEY,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func NewLeadStore(ctx context.Context, databaseURL string) (*LeadStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if _, err := pool.Exec(ctx, createLeadsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create landing_leads: %w", err)
	}

	log.Info().Str("host", cfg.ConnConfig.Host).Msg("PostgreSQL lead store ready")
	return &LeadStore{pool: pool}, nil
}

const insertLead = `INSERT INTO landing_leads (payload) VALUES ($1) RETURNING id, created_at`

func (s *LeadStore) InsertLead(ctx context.Context, payload json.RawMessage) (Lead, error) {
	var l Lead
	err := s.pool.QueryRow(ctx, insertLead, string(payload)).Scan(&l.ID, &l.CreatedAt)
	return l, err
}

func (s *LeadStore) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error().Err(err).Msg("postgres down")
		return stats
	}

	poolStats := s.pool.Stat()
	stats["status"] = "up"
	stats["total_conns"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["max_conns"] = strconv.Itoa(int(poolStats.MaxConns()))

	if poolStats.EmptyAcquireCount() > 0 {
		stats["message"] = "The application has tried to acquire a connection from an empty pool. Consider increasing max connections."
	}

	return stats
}

func (s *LeadStore) Close() {
	log.Info().Msg("Disconnected from PostgreSQL lead store")
	s.pool.Close()
}
