// templates.go handles template persistence.
package database

import (
	"context"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// CreateTemplate inserts a template. The id and file path are chosen by the
// caller because the PDF is uploaded before the row exists.
func (db *DB) CreateTemplate(ctx context.Context, t *models.Template) error {
	query := `
		INSERT INTO templates (id, name, fields, file_path, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := db.QueryRowContext(ctx, query,
		t.ID, t.Name, t.Fields, t.FilePath, t.OwnerID,
	).Scan(&t.CreatedAt)
	return queryErr("insert template", err)
}

// GetTemplate retrieves a single template by ID.
func (db *DB) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var t models.Template
	// GetContext is sqlx's convenience method: it scans directly into a struct
	// using the `db:"column_name"` tags we defined on the model. The fields
	// column goes through models.Fields.Scan, which validates its shape.
	err := db.GetContext(ctx, &t, `SELECT * FROM templates WHERE id = $1`, id)
	if err != nil {
		return nil, queryErr("get template", err)
	}
	return &t, nil
}

// ListTemplates returns the owner's templates, newest first.
func (db *DB) ListTemplates(ctx context.Context, ownerID string) ([]models.Template, error) {
	templates := []models.Template{}
	err := db.SelectContext(ctx, &templates,
		`SELECT * FROM templates WHERE owner_id = $1 ORDER BY created_at DESC LIMIT 200`, ownerID)
	if err != nil {
		return nil, queryErr("list templates", err)
	}
	return templates, nil
}

// DeleteTemplate removes a template row. Its signed documents and captures
// go with it (ON DELETE CASCADE).
func (db *DB) DeleteTemplate(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return queryErr("delete template", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return queryErr("delete template", err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
