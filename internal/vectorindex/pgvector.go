package vectorindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/Masterminds/squirrel"
	"github.com/ashwch/syntaxpilot/internal/transport"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PGVectorIndex reads a table of the form
//
//	CREATE TABLE commands (id text PRIMARY KEY, command text NOT NULL, embedding vector(384));
//
// and orders rows by cosine distance to the query.
type PGVectorIndex struct {
	sb     squirrel.StatementBuilderType
	table  string
	closer func() error
	logger *zap.Logger
}

// NewPGVectorIndex wraps an existing runner; the caller keeps ownership of it.
func NewPGVectorIndex(br squirrel.BaseRunner, table string, logger *zap.Logger) (*PGVectorIndex, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("pgvector: invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGVectorIndex{
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).RunWith(br),
		table:  table,
		closer: func() error { return nil },
		logger: logger.Named("pgvector"),
	}, nil
}

// OpenPGVector connects through a pgx pool with the vector types registered
// and exposes it as a *sql.DB.
func OpenPGVector(ctx context.Context, dsn, table string, logger *zap.Logger) (*PGVectorIndex, error) {
	if dsn == "" {
		return nil, errors.New("pgvector: DSN is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: parse DSN: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, storeError(ctx, "create pool", err)
	}
	db := sql.OpenDB(stdlib.GetPoolConnector(pool))

	idx, err := NewPGVectorIndex(db, table, logger)
	if err != nil {
		_ = db.Close()
		pool.Close()
		return nil, err
	}
	idx.closer = func() error {
		err := db.Close()
		pool.Close()
		return err
	}
	return idx, nil
}

func (p *PGVectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if err := checkQuery(vector, topK); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(vector)

	qry := p.sb.
		Select("id", "command").
		Column(squirrel.Expr("1 - (embedding <=> ?) AS score", vec)).
		From(p.table).
		OrderByClause(squirrel.Expr("embedding <=> ?", vec)).
		Limit(uint64(topK))

	rows, err := qry.QueryContext(ctx)
	if err != nil {
		return nil, storeError(ctx, "query", err)
	}
	defer rows.Close() //nolint:errcheck

	var matches []Match
	for rows.Next() {
		var (
			id      sql.NullString
			command string
			score   float64
		)
		if err := rows.Scan(&id, &command, &score); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", transport.ErrResponse, err)
		}
		matches = append(matches, Match{
			ID:       id.String,
			Score:    float32(score),
			Metadata: commandMetadata(id.String, command),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(ctx, "iterate rows", err)
	}

	p.logger.Debug("query finished", zap.Int("matches", len(matches)), zap.Int("top_k", topK))
	return matches, nil
}

func (p *PGVectorIndex) Close() error {
	return p.closer()
}
