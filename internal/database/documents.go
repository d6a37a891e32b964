// documents.go handles signed document persistence.
package database

import (
	"context"

	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// CreateSignedDocument inserts a submission and returns its id. This is the
// single atomic write of a signing session.
func (db *DB) CreateSignedDocument(ctx context.Context, templateID string, values models.FormValues) (string, error) {
	var id string
	err := db.QueryRowContext(ctx,
		`INSERT INTO signed_documents (template_id, form_values) VALUES ($1, $2) RETURNING id`,
		templateID, values,
	).Scan(&id)
	if err != nil {
		return "", queryErr("insert signed document", err)
	}
	return id, nil
}

// GetSignedDocument retrieves a signed document together with its template.
func (db *DB) GetSignedDocument(ctx context.Context, id string) (*models.SignedDocumentWithTemplate, error) {
	query := `
		SELECT d.id, d.template_id, d.form_values, d.created_at,
			t.id, t.name, t.fields, t.file_path, t.owner_id, t.created_at
		FROM signed_documents d
		JOIN templates t ON t.id = d.template_id
		WHERE d.id = $1`

	var d models.SignedDocumentWithTemplate
	err := db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.TemplateID, &d.FormValues, &d.CreatedAt,
		&d.Template.ID, &d.Template.Name, &d.Template.Fields, &d.Template.FilePath,
		&d.Template.OwnerID, &d.Template.CreatedAt,
	)
	if err != nil {
		return nil, queryErr("get signed document", err)
	}
	return &d, nil
}

// ListSignedDocuments returns the documents signed against the owner's
// templates, newest first.
func (db *DB) ListSignedDocuments(ctx context.Context, ownerID string) ([]models.SignedDocumentSummary, error) {
	docs := []models.SignedDocumentSummary{}
	err := db.SelectContext(ctx, &docs, `
		SELECT d.id, d.template_id, t.name AS template_name, d.created_at
		FROM signed_documents d
		JOIN templates t ON t.id = d.template_id
		WHERE t.owner_id = $1
		ORDER BY d.created_at DESC
		LIMIT 200`, ownerID)
	if err != nil {
		return nil, queryErr("list signed documents", err)
	}
	return docs, nil
}
