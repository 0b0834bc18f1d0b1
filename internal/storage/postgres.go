package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/gate"
)

// PostgresJournal records submissions in the trade_journal table.
type PostgresJournal struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresJournal connects to PostgreSQL and returns a journal.
func NewPostgresJournal(ctx context.Context, cfg *PostgresConfig) (*PostgresJournal, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-journal-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return NewPostgresJournalFromDB(db, cfg.Logger), nil
}

// NewPostgresJournalFromDB wraps an open database handle.
func NewPostgresJournalFromDB(db *sql.DB, logger *zap.Logger) *PostgresJournal {
	return &PostgresJournal{
		db:     db,
		logger: logger,
	}
}

const insertJournalQuery = `
		INSERT INTO trade_journal (
			id, submitted_at, status, decision, message,
			market_id, action, side, order_type,
			unit_price, amount, shares, potential_return,
			user_id, dev_user, reference
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

// Record implements Journal.
func (p *PostgresJournal) Record(ctx context.Context, result *gate.Result) error {
	id := uuid.NewString()

	_, err := p.db.ExecContext(ctx, insertJournalQuery,
		id,
		result.SubmittedAt,
		string(result.Status),
		string(result.Decision),
		result.Message,
		result.MarketID,
		string(result.Action),
		string(result.Side),
		string(result.OrderType),
		result.Quote.UnitPrice,
		result.Quote.Amount,
		result.Quote.Shares,
		result.Quote.PotentialReturn,
		result.UserID,
		result.DevUser,
		result.Reference(),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}

	p.logger.Debug("journal-entry-stored",
		zap.String("entry-id", id),
		zap.String("market-id", result.MarketID),
		zap.String("status", string(result.Status)))

	return nil
}

// Close closes the database connection.
func (p *PostgresJournal) Close() error {
	p.logger.Info("closing-postgres-journal")
	return p.db.Close()
}
