// Package index keeps a sqlite record of every document a batch run wrote.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jackzampolin/textpipe/internal/document"
)

// Entity is one indexed entity mention.
type Entity struct {
	Type  string
	Value string
}

// Record describes one written artifact.
type Record struct {
	Source     string
	Output     string
	Format     string
	Tokens     int
	Sentences  int
	Pages      int
	Sentiment  string
	Categories []string
	Entities   []Entity
	IndexedAt  time.Time
}

// RecordFromDocument summarizes doc for the index.
func RecordFromDocument(doc *document.Document, output, format string) Record {
	rec := Record{
		Source:    doc.Source,
		Output:    output,
		Format:    format,
		Tokens:    len(doc.Tokens()),
		Sentences: len(doc.SentencesOrWhole()),
	}
	rec.Pages, _ = document.Get(doc, document.PageCountKey)
	if s, ok := document.Get(doc, document.SentimentKey); ok {
		rec.Sentiment = s.Label
	}
	rec.Categories, _ = document.Get(doc, document.CategoriesKey)
	if ents, ok := document.Get(doc, document.EntitiesKey); ok {
		for _, m := range ents {
			rec.Entities = append(rec.Entities, Entity{Type: m.Type, Value: m.Value})
		}
	}
	return rec
}

// Store is a sqlite-backed document index.
type Store struct {
	db *sql.DB
}

// Open opens or creates the index at path with WAL mode enabled.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Batch workers write concurrently; one connection serializes them.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS docs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT UNIQUE NOT NULL,
	output TEXT NOT NULL,
	format TEXT NOT NULL,
	tokens INTEGER DEFAULT 0,
	sentences INTEGER DEFAULT 0,
	pages INTEGER DEFAULT 0,
	sentiment TEXT,
	indexed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS doc_categories (
	doc_id INTEGER NOT NULL,
	category TEXT NOT NULL,
	UNIQUE(doc_id, category),
	FOREIGN KEY(doc_id) REFERENCES docs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS doc_entities (
	doc_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	value TEXT NOT NULL,
	UNIQUE(doc_id, type, value),
	FOREIGN KEY(doc_id) REFERENCES docs(id) ON DELETE CASCADE
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// IndexDocument records doc as written to output in format.
func (s *Store) IndexDocument(ctx context.Context, doc *document.Document, output, format string) error {
	return s.Upsert(ctx, RecordFromDocument(doc, output, format))
}

// Upsert inserts or replaces the record for rec.Source.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if rec.Source == "" {
		return errors.New("index record has empty source")
	}
	if rec.IndexedAt.IsZero() {
		rec.IndexedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO docs (source, output, format, tokens, sentences, pages, sentiment, indexed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source) DO UPDATE SET
	output=excluded.output,
	format=excluded.format,
	tokens=excluded.tokens,
	sentences=excluded.sentences,
	pages=excluded.pages,
	sentiment=excluded.sentiment,
	indexed_at=excluded.indexed_at
RETURNING id;
`
	var docID int64
	err = tx.QueryRowContext(ctx, stmt,
		rec.Source,
		rec.Output,
		rec.Format,
		rec.Tokens,
		rec.Sentences,
		rec.Pages,
		rec.Sentiment,
		rec.IndexedAt.UTC().Format(time.RFC3339),
	).Scan(&docID)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", rec.Source, err)
	}

	if err := replaceCategories(ctx, tx, docID, rec.Categories); err != nil {
		return err
	}
	if err := replaceEntities(ctx, tx, docID, rec.Entities); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceCategories(ctx context.Context, tx *sql.Tx, docID int64, cats []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_categories WHERE doc_id=?`, docID); err != nil {
		return err
	}
	for _, cat := range cats {
		if cat == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO doc_categories (doc_id, category) VALUES (?, ?)`, docID, cat); err != nil {
			return err
		}
	}
	return nil
}

func replaceEntities(ctx context.Context, tx *sql.Tx, docID int64, ents []Entity) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_entities WHERE doc_id=?`, docID); err != nil {
		return err
	}
	for _, ent := range ents {
		if ent.Type == "" || ent.Value == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO doc_entities (doc_id, type, value) VALUES (?, ?, ?)`, docID, ent.Type, ent.Value); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the record for source.
func (s *Store) Get(ctx context.Context, source string) (Record, bool, error) {
	var (
		rec       Record
		docID     int64
		sentiment sql.NullString
		indexedAt string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, source, output, format, tokens, sentences, pages, sentiment, indexed_at
FROM docs WHERE source = ?`, source).Scan(
		&docID, &rec.Source, &rec.Output, &rec.Format, &rec.Tokens, &rec.Sentences, &rec.Pages, &sentiment, &indexedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	rec.Sentiment = sentiment.String
	rec.IndexedAt, _ = time.Parse(time.RFC3339, indexedAt)

	rows, err := s.db.QueryContext(ctx, `SELECT category FROM doc_categories WHERE doc_id = ?`, docID)
	if err != nil {
		return Record{}, false, err
	}
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			rows.Close()
			return Record{}, false, err
		}
		rec.Categories = append(rec.Categories, cat)
	}
	rows.Close()
	sort.Strings(rec.Categories)

	rows, err = s.db.QueryContext(ctx, `SELECT type, value FROM doc_entities WHERE doc_id = ? ORDER BY type, value`, docID)
	if err != nil {
		return Record{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var ent Entity
		if err := rows.Scan(&ent.Type, &ent.Value); err != nil {
			return Record{}, false, err
		}
		rec.Entities = append(rec.Entities, ent)
	}
	return rec, true, rows.Err()
}

// Count returns the number of indexed documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n)
	return n, err
}
