package locale

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStore loads localisation overrides from a Postgres table, so
// deployments can edit bot copy without a rebuild. Expected schema:
//
//	CREATE TABLE localisations (
//	    id      TEXT NOT NULL,
//	    locale  TEXT NOT NULL,
//	    message TEXT NOT NULL,
//	    PRIMARY KEY (id, locale)
//	);
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("locale: opening postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("locale: connecting to postgres: %w", err)
	}

	logger.Info("localisation store connected")
	return &PostgresStore{db: db, logger: logger}, nil
}

// Load reads every override row into the localiser, skipping rows whose
// locale tag does not parse.
func (s *PostgresStore) Load(ctx context.Context, l *Localiser) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, locale, message FROM localisations`)
	if err != nil {
		return fmt.Errorf("locale: querying overrides: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var id, locale, message string
		if err := rows.Scan(&id, &locale, &message); err != nil {
			return fmt.Errorf("locale: scanning override row: %w", err)
		}
		if err := l.SetOverride(id, locale, message); err != nil {
			s.logger.Warn("skipping malformed localisation row",
				zap.String("id", id),
				zap.String("locale", locale),
				zap.Error(err))
			continue
		}
		loaded++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("locale: iterating overrides: %w", err)
	}

	s.logger.Info("localisation overrides loaded", zap.Int("count", loaded))
	return nil
}

// Upsert writes one override back to the store.
func (s *PostgresStore) Upsert(ctx context.Context, id, locale, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO localisations (id, locale, message)
		VALUES ($1, $2, $3)
		ON CONFLICT (id, locale) DO UPDATE SET message = EXCLUDED.message`,
		id, locale, message)
	if err != nil {
		return fmt.Errorf("locale: upserting override: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
