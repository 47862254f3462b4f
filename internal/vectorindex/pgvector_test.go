package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ashwch/syntaxpilot/internal/transport"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pgQuery = "SELECT id, command, 1 - (embedding <=> $1) AS score FROM commands ORDER BY embedding <=> $2 LIMIT 2"

func TestPGVectorIndexQuery(t *testing.T) {
	query := []float32{0.1, 0.2, 0.3}

	tests := map[string]struct {
		setExpectations func(mock sqlmock.Sqlmock)
		expected        []Match
		expectedErr     error
	}{
		"ranked-rows": {
			setExpectations: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "command", "score"}).
					AddRow("nextjs", "npx create-next-app", 0.93).
					AddRow("vite", "npm create vite@latest", 0.71)
				mock.ExpectQuery(pgQuery).
					WithArgs(pgvector.NewVector(query), pgvector.NewVector(query)).
					WillReturnRows(rows)
			},
			expected: []Match{
				{ID: "nextjs", Score: 0.93, Metadata: map[string]any{"command": "npx create-next-app", "id": "nextjs"}},
				{ID: "vite", Score: 0.71, Metadata: map[string]any{"command": "npm create vite@latest", "id": "vite"}},
			},
		},
		"null-id": {
			setExpectations: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "command", "score"}).
					AddRow(nil, "ls -la", 0.5)
				mock.ExpectQuery(pgQuery).
					WithArgs(pgvector.NewVector(query), pgvector.NewVector(query)).
					WillReturnRows(rows)
			},
			expected: []Match{
				{Score: 0.5, Metadata: map[string]any{"command": "ls -la"}},
			},
		},
		"empty": {
			setExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(pgQuery).
					WithArgs(pgvector.NewVector(query), pgvector.NewVector(query)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "command", "score"}))
			},
		},
		"database-error": {
			setExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(pgQuery).
					WithArgs(pgvector.NewVector(query), pgvector.NewVector(query)).
					WillReturnError(errors.New("connection reset"))
			},
			expectedErr: transport.ErrConnection,
		},
		"bad-row": {
			setExpectations: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "command", "score"}).
					AddRow("x", "ls", "not-a-number")
				mock.ExpectQuery(pgQuery).
					WithArgs(pgvector.NewVector(query), pgvector.NewVector(query)).
					WillReturnRows(rows)
			},
			expectedErr: transport.ErrResponse,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
			require.NoError(t, err)
			defer db.Close() //nolint:errcheck

			tt.setExpectations(mock)

			idx, err := NewPGVectorIndex(db, "commands", nil)
			require.NoError(t, err)

			got, err := idx.Query(context.Background(), query, 2)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, len(tt.expected), len(got))
				for i := range tt.expected {
					assert.Equal(t, tt.expected[i].ID, got[i].ID)
					assert.InDelta(t, tt.expected[i].Score, got[i].Score, 1e-6)
					assert.Equal(t, tt.expected[i].Metadata, got[i].Metadata)
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNewPGVectorIndexRejectsInjectedTableNames(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	for _, table := range []string{"", "commands; DROP TABLE x", "1commands", "a.b.c"} {
		_, err := NewPGVectorIndex(db, table, nil)
		assert.Error(t, err, table)
	}
	_, err = NewPGVectorIndex(db, "public.commands", nil)
	assert.NoError(t, err)
}

func TestOpenPGVectorRequiresDSN(t *testing.T) {
	_, err := OpenPGVector(context.Background(), "", "commands", nil)
	assert.Error(t, err)
}
