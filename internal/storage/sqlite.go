package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/devflow/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		path TEXT,
		name TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		indexed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sources_type_path ON sources(type, path);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		source_id INTEGER NOT NULL,
		title TEXT,
		url TEXT,
		content_preview TEXT,
		indexed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (source_id) REFERENCES sources(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_source_id ON documents(source_id);
	CREATE INDEX IF NOT EXISTS idx_documents_url ON documents(url);

	CREATE TABLE IF NOT EXISTS search_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		results_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateSource inserts a source in the indexing state.
func (s *SQLiteStorage) CreateSource(ctx context.Context, sourceType, path, name string) (*models.Source, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (type, path, name, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		sourceType, path, name, models.StatusIndexing, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Source{ID: id, Type: sourceType, Path: path, Name: name, Status: models.StatusIndexing, CreatedAt: now}, nil
}

// UpdateSourceStatus sets the status and stamps indexed_at.
func (s *SQLiteStorage) UpdateSourceStatus(ctx context.Context, id int64, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sources SET status = ?, indexed_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: source %d", models.ErrNotFound, id)
	}
	return nil
}

const sourceColumns = `s.id, s.type, COALESCE(s.path, ''), COALESCE(s.name, ''), s.status, s.indexed_at, s.created_at`

func scanSource(row interface{ Scan(...any) error }, extra ...any) (*models.Source, error) {
	var src models.Source
	var indexedAt sql.NullTime
	dest := append([]any{&src.ID, &src.Type, &src.Path, &src.Name, &src.Status, &indexedAt, &src.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if indexedAt.Valid {
		t := indexedAt.Time
		src.IndexedAt = &t
	}
	return &src, nil
}

// GetSource returns a source by ID.
func (s *SQLiteStorage) GetSource(ctx context.Context, id int64) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources s WHERE s.id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source %d", models.ErrNotFound, id)
	}
	return src, err
}

// FindSourceByPath returns the most recent source of the given type for path.
func (s *SQLiteStorage) FindSourceByPath(ctx context.Context, sourceType, path string) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources s WHERE s.type = ? AND s.path = ? ORDER BY s.id DESC LIMIT 1`,
		sourceType, path,
	)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s source %s", models.ErrNotFound, sourceType, path)
	}
	return src, err
}

// ListSources returns all sources with their document counts, newest first.
func (s *SQLiteStorage) ListSources(ctx context.Context) ([]*models.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+`, COUNT(d.id)
		 FROM sources s
		 LEFT JOIN documents d ON s.id = d.source_id
		 GROUP BY s.id
		 ORDER BY s.created_at DESC, s.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := make([]*models.Source, 0)
	for rows.Next() {
		var count int
		src, err := scanSource(rows, &count)
		if err != nil {
			return nil, err
		}
		src.DocumentCount = count
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source and its documents.
func (s *SQLiteStorage) DeleteSource(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE source_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: source %d", models.ErrNotFound, id)
	}
	return tx.Commit()
}

// AddDocument inserts or replaces a document row.
func (s *SQLiteStorage) AddDocument(ctx context.Context, doc *models.Document) error {
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, source_id, title, url, content_preview, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.SourceID, doc.Title, doc.URL, doc.ContentPreview, doc.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

// ListDocuments returns the documents of a source.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, sourceID int64) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, COALESCE(title, ''), COALESCE(url, ''), COALESCE(content_preview, ''), indexed_at
		 FROM documents WHERE source_id = ? ORDER BY indexed_at, id`, sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.SourceID, &d.Title, &d.URL, &d.ContentPreview, &d.IndexedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// FindDocumentByURL returns the most recently indexed document recorded for url.
func (s *SQLiteStorage) FindDocumentByURL(ctx context.Context, url string) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_id, COALESCE(title, ''), COALESCE(url, ''), COALESCE(content_preview, ''), indexed_at
		 FROM documents WHERE url = ? ORDER BY indexed_at DESC, rowid DESC LIMIT 1`, url,
	).Scan(&d.ID, &d.SourceID, &d.Title, &d.URL, &d.ContentPreview, &d.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, url)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDocumentsByURL removes every document row recorded for url, whatever its source.
func (s *SQLiteStorage) DeleteDocumentsByURL(ctx context.Context, url string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE url = ?`, url)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// AddSearch records a query in the search history.
func (s *SQLiteStorage) AddSearch(ctx context.Context, query string, resultsCount int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_history (query, results_count, created_at) VALUES (?, ?, ?)`,
		query, resultsCount, time.Now().UTC(),
	)
	return err
}

// Stats returns the number of indexed sources, documents, and searches.
func (s *SQLiteStorage) Stats(ctx context.Context) (*models.Stats, error) {
	var st models.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM sources WHERE status = ?),
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM search_history)`,
		models.StatusIndexed,
	).Scan(&st.IndexedSources, &st.TotalDocuments, &st.TotalSearches)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
