// captures.go handles signatures captured on a second device.
package database

import (
	"context"

	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// CreateSignatureCapture inserts a capture. The row_inserted trigger
// announces it to live signing sessions for the same template.
func (db *DB) CreateSignatureCapture(ctx context.Context, c *models.SignatureCapture) error {
	err := db.QueryRowContext(ctx,
		`INSERT INTO signature_captures (template_id, label, value) VALUES ($1, $2, $3) RETURNING id, created_at`,
		c.TemplateID, c.Label, c.Value,
	).Scan(&c.ID, &c.CreatedAt)
	return queryErr("insert signature capture", err)
}

// GetSignatureCapture retrieves a capture by id.
func (db *DB) GetSignatureCapture(ctx context.Context, id string) (*models.SignatureCapture, error) {
	var c models.SignatureCapture
	err := db.GetContext(ctx, &c, `SELECT * FROM signature_captures WHERE id = $1`, id)
	if err != nil {
		return nil, queryErr("get signature capture", err)
	}
	return &c, nil
}
