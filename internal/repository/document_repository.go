package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"pdf-chat-server/internal/domain"
)

const documentColumns = `id, user_id, storage_key, name, size, mime_type, page_count,
	is_active, index_name, namespace, created_at, updated_at`

// PostgresDocumentRepository implements domain.DocumentRepository
type PostgresDocumentRepository struct {
	db     *sql.DB
	logger domain.Logger
}

// NewPostgresDocumentRepository creates a new document repository
func NewPostgresDocumentRepository(db *sql.DB, logger domain.Logger) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{db: db, logger: logger}
}

func scanDocument(row interface{ Scan(...interface{}) error }) (*domain.Document, error) {
	var (
		d                    domain.Document
		indexName, namespace sql.NullString
	)
	err := row.Scan(
		&d.ID, &d.UserID, &d.StorageKey, &d.Name, &d.Size, &d.MimeType, &d.PageCount,
		&d.IsActive, &indexName, &namespace, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.IndexName = stringPtr(indexName)
	d.Namespace = stringPtr(namespace)
	return &d, nil
}

func insertDocument(ctx context.Context, q queryer, doc *domain.Document) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		doc.ID, doc.UserID, doc.StorageKey, doc.Name, doc.Size, doc.MimeType, doc.PageCount,
		doc.IsActive, nullString(doc.IndexName), nullString(doc.Namespace), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Create inserts a document row.
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	return insertDocument(ctx, r.db, doc)
}

// CreateReplacing deactivates the user's active documents and inserts doc in
// one transaction. Replacements of the same user are serialized by a
// transaction-scoped advisory lock, so two concurrent uploads cannot both
// leave an active document behind.
func (r *PostgresDocumentRepository) CreateReplacing(ctx context.Context, doc *domain.Document) ([]string, error) {
	var deactivated []string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, doc.UserID); err != nil {
			return fmt.Errorf("lock user documents: %w", err)
		}
		rows, err := tx.QueryContext(ctx, `
			UPDATE documents SET is_active = FALSE, updated_at = $2
			WHERE user_id = $1 AND is_active
			RETURNING id`,
			doc.UserID, doc.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("deactivate documents: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan deactivated id: %w", err)
			}
			deactivated = append(deactivated, id)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("deactivate documents: %w", err)
		}
		return insertDocument(ctx, tx, doc)
	})
	if err != nil {
		return nil, err
	}
	if len(deactivated) > 0 {
		r.logger.Info("Replaced active documents", "userId", doc.UserID, "deactivated", len(deactivated))
	}
	return deactivated, nil
}

// GetByID loads a document by id.
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrDocumentNotFound
	}
	doc, err := scanDocument(r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	return doc, nil
}

// ListByUser returns the user's documents, newest first.
func (r *PostgresDocumentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountActive counts the documents that occupy quota.
func (r *PostgresDocumentRepository) CountActive(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE user_id = $1 AND is_active`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Deactivate releases a document's quota slot. Owner-scoped.
func (r *PostgresDocumentRepository) Deactivate(ctx context.Context, userID, documentID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET is_active = FALSE, updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		documentID, userID,
	)
	if err != nil {
		return fmt.Errorf("deactivate document: %w", err)
	}
	return expectAffected(res, domain.ErrDocumentNotFound)
}

// Reactivate undoes a replacement. Owner-scoped.
func (r *PostgresDocumentRepository) Reactivate(ctx context.Context, userID string, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET is_active = TRUE, updated_at = now()
		WHERE user_id = $1 AND id = ANY($2::uuid[])`,
		userID, uuidArray(documentIDs),
	)
	if err != nil {
		return fmt.Errorf("reactivate documents: %w", err)
	}
	return nil
}

// SetIndexInfo records where the indexer stored the document.
func (r *PostgresDocumentRepository) SetIndexInfo(ctx context.Context, documentID, indexName, namespace string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET index_name = $2, namespace = $3, updated_at = now()
		WHERE id = $1`,
		documentID, indexName, namespace,
	)
	if err != nil {
		return fmt.Errorf("set index info: %w", err)
	}
	return expectAffected(res, domain.ErrDocumentNotFound)
}

// Delete removes a document row.
func (r *PostgresDocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return expectAffected(res, domain.ErrDocumentNotFound)
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// uuidArray renders ids as a Postgres array literal, e.g. {a,b}.
func uuidArray(ids []string) string {
	return "{" + strings.Join(ids, ",") + "}"
}
