package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteIndex scans a small local table and ranks rows by cosine
// similarity. The table layout is
//
//	CREATE TABLE commands (id TEXT, command TEXT NOT NULL, embedding TEXT NOT NULL);
//
// where embedding is a JSON array of floats.
type SQLiteIndex struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

// OpenSQLite opens path read-only. A missing file is an error rather than a
// silently created empty database.
func OpenSQLite(ctx context.Context, path, table string, logger *zap.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, errors.New("sqlite: database path is required")
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("sqlite: invalid table name %q", table)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	path = abs

	db, err := sql.Open("sqlite", readOnlyURI(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeError(ctx, "ping", err)
	}
	return &SQLiteIndex{db: db, table: table, logger: logger.Named("sqlite")}, nil
}

func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if err := checkQuery(vector, topK); err != nil {
		return nil, err
	}

	// table is validated as an identifier in OpenSQLite.
	rows, err := s.db.QueryContext(ctx, "SELECT id, command, embedding FROM "+s.table)
	if err != nil {
		return nil, storeError(ctx, "query", err)
	}
	defer rows.Close() //nolint:errcheck

	var (
		matches []Match
		skipped int
	)
	for rows.Next() {
		var (
			id      sql.NullString
			command string
			raw     string
		)
		if err := rows.Scan(&id, &command, &raw); err != nil {
			return nil, storeError(ctx, "scan", err)
		}
		var stored []float32
		if err := json.Unmarshal([]byte(raw), &stored); err != nil || len(stored) != len(vector) {
			skipped++
			continue
		}
		matches = append(matches, Match{
			ID:       id.String,
			Score:    cosine(vector, stored),
			Metadata: commandMetadata(id.String, command),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(ctx, "iterate rows", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	s.logger.Debug("query finished",
		zap.Int("matches", len(matches)),
		zap.Int("skipped_rows", skipped),
		zap.Int("top_k", topK),
	)
	return matches, nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// readOnlyURI renders an absolute path as a file: URI with an empty
// authority, which is the only form SQLite accepts besides localhost.
func readOnlyURI(absPath string) string {
	p := filepath.ToSlash(absPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p, RawQuery: "mode=ro"}).String()
}

// cosine returns 0 when either vector has zero norm.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
