package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/paperlit/internal/models"
	_ "modernc.org/sqlite"
)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    filename TEXT NOT NULL,
    storage_path TEXT NOT NULL,
    status TEXT NOT NULL,
    originality_score REAL,
    similarity_details TEXT,
    uploaded_at INTEGER NOT NULL,
    scored_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id, uploaded_at DESC);
`

const documentColumns = `id, user_id, name, filename, storage_path, status, originality_score, similarity_details, uploaded_at, scored_at`

// SQLiteDocumentStore is the embedded single-node document store.
type SQLiteDocumentStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteDocumentStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(SchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteDocumentStore{db: db}, nil
}

func (s *SQLiteDocumentStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteDocumentStore) Insert(ctx context.Context, doc *models.Document) error {
	args, err := documentArgs(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents(`+documentColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *SQLiteDocumentStore) Update(ctx context.Context, doc *models.Document) error {
	args, err := documentArgs(doc)
	if err != nil {
		return err
	}
	// documentArgs starts with id and user_id; the WHERE clause takes them last.
	args = append(args[2:], doc.ID, doc.UserID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET name = ?, filename = ?, storage_path = ?, status = ?,
		 originality_score = ?, similarity_details = ?, uploaded_at = ?, scored_at = ?
		 WHERE id = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDocumentStore) Delete(ctx context.Context, userID, documentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND user_id = ?`, documentID, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDocumentStore) Get(ctx context.Context, userID, documentID string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ? AND user_id = ?`,
		documentID, userID,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteDocumentStore) ListByUser(ctx context.Context, userID string) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE user_id = ? ORDER BY uploaded_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func documentArgs(doc *models.Document) ([]any, error) {
	var score sql.NullFloat64
	if doc.OriginalityScore != nil {
		score = sql.NullFloat64{Float64: *doc.OriginalityScore, Valid: true}
	}

	var details sql.NullString
	if doc.SimilarityDetails != nil {
		raw, err := json.Marshal(doc.SimilarityDetails)
		if err != nil {
			return nil, fmt.Errorf("encode similarity details: %w", err)
		}
		details = sql.NullString{String: string(raw), Valid: true}
	}

	var scoredAt sql.NullInt64
	if doc.ScoredAt != nil {
		scoredAt = sql.NullInt64{Int64: doc.ScoredAt.UnixNano(), Valid: true}
	}

	return []any{
		doc.ID,
		doc.UserID,
		doc.Name,
		doc.Filename,
		doc.StoragePath,
		doc.Status,
		score,
		details,
		doc.UploadedAt.UnixNano(),
		scoredAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc        models.Document
		score      sql.NullFloat64
		details    sql.NullString
		uploadedAt int64
		scoredAt   sql.NullInt64
	)
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Name,
		&doc.Filename,
		&doc.StoragePath,
		&doc.Status,
		&score,
		&details,
		&uploadedAt,
		&scoredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.UploadedAt = time.Unix(0, uploadedAt).UTC()
	if score.Valid {
		v := score.Float64
		doc.OriginalityScore = &v
	}
	if details.Valid {
		var report models.OriginalityReport
		if err := json.Unmarshal([]byte(details.String), &report); err != nil {
			return nil, fmt.Errorf("decode similarity details: %w", err)
		}
		doc.SimilarityDetails = &report
	}
	if scoredAt.Valid {
		t := time.Unix(0, scoredAt.Int64).UTC()
		doc.ScoredAt = &t
	}
	return &doc, nil
}
