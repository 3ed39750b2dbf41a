package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/matrix"
	"github.com/cognicore/cooccur/pkg/cooccur/store"
)

// tokenCacheSize bounds the (run, token) → id cache used by TopNeighbors.
const tokenCacheSize = 4096

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db     *sql.DB
	tokens *lru.Cache[string, int]
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	// Connection pragmas go in the DSN so every pooled connection gets them.
	// Writers take the lock up front and wait for each other instead of
	// failing with SQLITE_BUSY.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	cache, err := lru.New[string, int](tokenCacheSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db, tokens: cache}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	window_size INTEGER NOT NULL,
	ignore_missing INTEGER NOT NULL,
	positive INTEGER NOT NULL,
	npmi INTEGER NOT NULL,
	vocabulary INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tokens (
	run_id TEXT NOT NULL,
	id INTEGER NOT NULL,
	token TEXT NOT NULL,
	PRIMARY KEY(run_id, id),
	UNIQUE(run_id, token),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cooc (
	run_id TEXT NOT NULL,
	i INTEGER NOT NULL,
	j INTEGER NOT NULL,
	weight REAL NOT NULL,
	PRIMARY KEY(run_id, i, j),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pmi (
	run_id TEXT NOT NULL,
	i INTEGER NOT NULL,
	j INTEGER NOT NULL,
	score REAL NOT NULL,
	PRIMARY KEY(run_id, i, j),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_cooc_col ON cooc(run_id, j);
CREATE INDEX IF NOT EXISTS idx_pmi_col ON pmi(run_id, j);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun writes a run and both of its matrices in one transaction.
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) (string, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = store.NewRunID(r.CreatedAt)
	}
	if err := r.Validate(); err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, window_size, ignore_missing, positive, npmi, vocabulary, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, r.ID, r.Window, r.IgnoreMissing, r.Positive, r.UseNPMI, len(r.Tokens), r.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	if err := insertTokens(ctx, tx, r.ID, r.Tokens); err != nil {
		return "", err
	}
	if err := insertCells(ctx, tx, `INSERT INTO cooc (run_id, i, j, weight) VALUES (?, ?, ?, ?)`, r.ID, r.Cooc); err != nil {
		return "", err
	}
	if err := insertCells(ctx, tx, `INSERT INTO pmi (run_id, i, j, score) VALUES (?, ?, ?, ?)`, r.ID, r.PMI); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return r.ID, nil
}

func insertTokens(ctx context.Context, tx *sql.Tx, runID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tokens (run_id, id, token) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for id, tok := range tokens {
		if _, err := stmt.ExecContext(ctx, runID, id, tok); err != nil {
			return fmt.Errorf("insert token %q: %w", tok, err)
		}
	}
	return nil
}

func insertCells(ctx context.Context, tx *sql.Tx, query, runID string, t matrix.Triplets) error {
	if t.Len() == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for k := range t.Rows {
		if _, err := stmt.ExecContext(ctx, runID, t.Rows[k], t.Cols[k], t.Vals[k]); err != nil {
			return err
		}
	}
	return nil
}

// LoadRun reads a run back with both matrices.
func (s *sqliteStore) LoadRun(ctx context.Context, id string) (store.Run, error) {
	r := store.Run{ID: id}
	var (
		vocabulary int
		createdAt  int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT window_size, ignore_missing, positive, npmi, vocabulary, created_at
FROM runs WHERE id = ?;
`, id).Scan(&r.Window, &r.IgnoreMissing, &r.Positive, &r.UseNPMI, &vocabulary, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Run{}, err
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()

	r.Tokens = make([]string, vocabulary)
	rows, err := s.db.QueryContext(ctx, `SELECT id, token FROM tokens WHERE run_id = ?`, id)
	if err != nil {
		return store.Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			tid int
			tok string
		)
		if err := rows.Scan(&tid, &tok); err != nil {
			return store.Run{}, err
		}
		if tid < 0 || tid >= vocabulary {
			return store.Run{}, fmt.Errorf("run %s: token id %d out of range: %w", id, tid, internalerr.ErrInvalidInput)
		}
		r.Tokens[tid] = tok
	}
	if err := rows.Err(); err != nil {
		return store.Run{}, err
	}

	if r.Cooc, err = s.loadCells(ctx, `SELECT i, j, weight FROM cooc WHERE run_id = ? ORDER BY i, j`, id, vocabulary); err != nil {
		return store.Run{}, err
	}
	if r.PMI, err = s.loadCells(ctx, `SELECT i, j, score FROM pmi WHERE run_id = ? ORDER BY i, j`, id, vocabulary); err != nil {
		return store.Run{}, err
	}
	return r, nil
}

func (s *sqliteStore) loadCells(ctx context.Context, query, runID string, n int) (matrix.Triplets, error) {
	t := matrix.Triplets{N: n, Rows: []int{}, Cols: []int{}, Vals: []float64{}}
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return t, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			i, j int
			v    float64
		)
		if err := rows.Scan(&i, &j, &v); err != nil {
			return t, err
		}
		t.Rows = append(t.Rows, i)
		t.Cols = append(t.Cols, j)
		t.Vals = append(t.Vals, v)
	}
	return t, rows.Err()
}

// LatestRun returns the run with the newest creation time.
func (s *sqliteStore) LatestRun(ctx context.Context) (store.Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("latest run: %w", internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Run{}, err
	}
	return s.LoadRun(ctx, id)
}

// TopNeighbors returns the top K neighbors ranked by PMI score for a token.
func (s *sqliteStore) TopNeighbors(ctx context.Context, runID, token string, k int) ([]store.Neighbor, error) {
	if k <= 0 {
		k = store.DefaultNeighbors
	}

	id, err := s.tokenID(ctx, runID, token)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT t.token, p.score, COALESCE(c.weight, 0)
FROM pmi p
JOIN tokens t
	ON t.run_id = p.run_id
	AND t.id = CASE WHEN p.i = ? THEN p.j ELSE p.i END
LEFT JOIN cooc c
	ON c.run_id = p.run_id AND c.i = p.i AND c.j = p.j
WHERE p.run_id = ? AND (p.i = ? OR p.j = ?)
ORDER BY p.score DESC, t.token ASC
LIMIT ?;
`, id, runID, id, id, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var neighbors []store.Neighbor
	for rows.Next() {
		var n store.Neighbor
		if err := rows.Scan(&n.Token, &n.PMI, &n.Weight); err != nil {
			return nil, err
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

// tokenID resolves token within a run. Runs are immutable once saved, so
// hits never go stale.
func (s *sqliteStore) tokenID(ctx context.Context, runID, token string) (int, error) {
	key := runID + "\x00" + token
	if id, ok := s.tokens.Get(key); ok {
		return id, nil
	}

	var id int
	err := s.db.QueryRowContext(ctx, `SELECT id FROM tokens WHERE run_id = ? AND token = ?`, runID, token).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.runExists(ctx, runID); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("token %q in run %s: %w", token, runID, internalerr.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	s.tokens.Add(key, id)
	return id, nil
}

func (s *sqliteStore) runExists(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	return err
}
