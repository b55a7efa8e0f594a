package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"ccgraph/internal/domain"
	"ccgraph/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.GraphStore over a graph snapshot held
// in SQLite.
type Repository struct {
	db   *sql.DB
	path string

	closeOnce sync.Once
	closeErr  error
}

var _ repository.GraphStore = (*Repository)(nil)

// New opens (or creates) a snapshot database. ":memory:" gives a private
// in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db, path: dbPath}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vertices (
		id INTEGER PRIMARY KEY,
		label TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS arcs (
		src INTEGER NOT NULL,
		dst INTEGER NOT NULL,
		PRIMARY KEY (src, dst)
	) WITHOUT ROWID;

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_arcs_dst ON arcs(dst, src);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Path returns the database path the repository was opened with.
func (r *Repository) Path() string {
	return r.path
}

// ResolveID implements repository.GraphStore
func (r *Repository) ResolveID(ctx context.Context, label string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM vertices WHERE label = ?`, label).Scan(&id)
	if err == sql.ErrNoRows {
		return domain.NotFound, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve label: %w", err)
	}
	return id, nil
}

// ResolveLabel implements repository.GraphStore
func (r *Repository) ResolveLabel(ctx context.Context, id int64) (string, bool, error) {
	var label string
	err := r.db.QueryRowContext(ctx, `SELECT label FROM vertices WHERE id = ?`, id).Scan(&label)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve id: %w", err)
	}
	return label, true, nil
}

// PredecessorIDs implements repository.GraphStore
func (r *Repository) PredecessorIDs(ctx context.Context, id int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT src FROM arcs WHERE dst = ? ORDER BY src`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query predecessors: %w", err)
	}
	return scanIDs(rows)
}

// SuccessorIDs implements repository.GraphStore
func (r *Repository) SuccessorIDs(ctx context.Context, id int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT dst FROM arcs WHERE src = ? ORDER BY dst`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query successors: %w", err)
	}
	return scanIDs(rows)
}

// SharedPredecessors implements repository.GraphStore. A vertex qualifies
// when it links to at least minShared distinct ids.
func (r *Repository) SharedPredecessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	return r.shared(ctx, "src", "dst", ids, minShared)
}

// SharedSuccessors implements repository.GraphStore
func (r *Repository) SharedSuccessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	return r.shared(ctx, "dst", "src", ids, minShared)
}

// shared groups arcs whose anchor column is one of ids by the neighbor
// column. Column names are fixed by the two callers above.
func (r *Repository) shared(ctx context.Context, neighbor, anchor string, ids []int64, minShared int) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}

	idList, err := idsToJSON(ids)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %[1]s FROM arcs
		WHERE %[2]s IN (SELECT DISTINCT value FROM json_each(?))
		GROUP BY %[1]s
		HAVING COUNT(DISTINCT %[2]s) >= ?
		ORDER BY COUNT(DISTINCT %[2]s) DESC, %[1]s ASC
	`, neighbor, anchor)

	rows, err := r.db.QueryContext(ctx, query, idList, minShared)
	if err != nil {
		return nil, fmt.Errorf("failed to query shared neighbors: %w", err)
	}
	return scanIDs(rows)
}

// Stats implements repository.StatsProvider
func (r *Repository) Stats(ctx context.Context) (repository.Stats, error) {
	var s repository.Stats
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vertices`).Scan(&s.Vertices); err != nil {
		return s, fmt.Errorf("failed to count vertices: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM arcs`).Scan(&s.Arcs); err != nil {
		return s, fmt.Errorf("failed to count arcs: %w", err)
	}
	return s, nil
}

// ConcurrentSafe implements repository.ConcurrentSafe
func (r *Repository) ConcurrentSafe() bool { return true }

// GetMetadata returns a metadata value, or "" if unset.
func (r *Repository) GetMetadata(ctx context.Context, key string) (string, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}
	return nullToString(value), nil
}

// SetMetadata stores a metadata value.
func (r *Repository) SetMetadata(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}
	return nil
}

// Clear removes every vertex and arc.
func (r *Repository) Clear(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"arcs", "vertices"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Close closes the database. Subsequent calls return the first result.
func (r *Repository) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.db.Close()
	})
	return r.closeErr
}

// Import is a batched write of vertices and arcs inside one transaction.
type Import struct {
	tx         *sql.Tx
	vertexStmt *sql.Stmt
	arcStmt    *sql.Stmt
	vertices   int64
	arcs       int64
}

// BeginImport starts a batched import. Callers must Commit or Rollback.
func (r *Repository) BeginImport(ctx context.Context) (*Import, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import: %w", err)
	}

	vertexStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO vertices (id, label) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare vertex insert: %w", err)
	}
	arcStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO arcs (src, dst) VALUES (?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to prepare arc insert: %w", err)
	}

	return &Import{tx: tx, vertexStmt: vertexStmt, arcStmt: arcStmt}, nil
}

// AddVertex writes one vertex with its store label.
func (im *Import) AddVertex(ctx context.Context, id int64, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("vertex %d: empty label", id)
	}
	if _, err := im.vertexStmt.ExecContext(ctx, id, label); err != nil {
		return fmt.Errorf("failed to insert vertex %d: %w", id, err)
	}
	im.vertices++
	return nil
}

// AddArc writes one arc.
func (im *Import) AddArc(ctx context.Context, src, dst int64) error {
	if _, err := im.arcStmt.ExecContext(ctx, src, dst); err != nil {
		return fmt.Errorf("failed to insert arc %d->%d: %w", src, dst, err)
	}
	im.arcs++
	return nil
}

// Counts returns the vertices and arcs written so far.
func (im *Import) Counts() (vertices, arcs int64) {
	return im.vertices, im.arcs
}

// Commit finishes the import.
func (im *Import) Commit() error {
	im.vertexStmt.Close()
	im.arcStmt.Close()
	if err := im.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// Rollback abandons the import. It is safe after Commit.
func (im *Import) Rollback() error {
	im.vertexStmt.Close()
	im.arcStmt.Close()
	err := im.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}
