// Package templates implements the template save and delete flows across
// the two stores involved: blob storage for the PDF and the database for
// the row that points at it.
package templates

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
	"github.com/Shimizu-Technology/sign-tools-api/internal/services/layout"
	pdfservice "github.com/Shimizu-Technology/sign-tools-api/internal/services/pdf"
)

// Repository is the template half of the persistence collaborator.
type Repository interface {
	CreateTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// BlobStore is the blob storage collaborator.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte) error
	Download(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, paths ...string) error
	PublicURL(path string) string
}

// Service saves, loads and deletes templates.
type Service struct {
	repo  Repository
	blobs BlobStore
	newID func() string
}

// New creates a template service.
func New(repo Repository, blobs BlobStore) *Service {
	return &Service{repo: repo, blobs: blobs, newID: func() string { return uuid.New().String() }}
}

// Save stores the PDF and then the template row. The PDF and fields are
// persisted together or not at all: if the row cannot be written, the
// uploaded PDF is removed again. If that removal also fails the file is left
// orphaned and reported in the logs.
func (s *Service) Save(ctx context.Context, name string, fields models.Fields, pdf []byte, ownerID *string) (*models.Template, error) {
	name = layout.NormalizeLabel(name)
	if name == "" {
		return nil, apperrors.Validation("template name is required")
	}
	if len(fields) == 0 {
		return nil, apperrors.Validation("a template needs at least one field")
	}
	if err := layout.ValidateFields(fields); err != nil {
		return nil, err
	}
	if !pdfservice.ValidatePDF(pdf) {
		return nil, apperrors.Validation("the uploaded file is not a PDF")
	}

	id := s.newID()
	t := &models.Template{
		ID:       id,
		Name:     name,
		Fields:   fields,
		FilePath: id + ".pdf",
		OwnerID:  ownerID,
	}

	if err := s.blobs.Upload(ctx, t.FilePath, pdf); err != nil {
		return nil, err
	}

	if err := s.repo.CreateTemplate(ctx, t); err != nil {
		pw := &apperrors.PartialWriteError{Path: t.FilePath, Err: err}
		// Use a fresh context: the request may be why the insert failed.
		if rmErr := s.blobs.Remove(context.WithoutCancel(ctx), t.FilePath); rmErr != nil {
			pw.CompensationErr = rmErr
			log.Printf("❌ Orphaned template file %s: %v", t.FilePath, rmErr)
		}
		return nil, pw
	}
	return t, nil
}

// Get loads a template.
func (s *Service) Get(ctx context.Context, id string) (*models.Template, error) {
	return s.repo.GetTemplate(ctx, id)
}

// GetOwned loads a template that must belong to ownerID. Someone else's
// template looks the same as a missing one, and so does a template whose
// owner account is gone: no operator manages it.
func (s *Service) GetOwned(ctx context.Context, id, ownerID string) (*models.Template, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID == nil || *t.OwnerID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return t, nil
}

// File returns the template's base PDF.
func (s *Service) File(ctx context.Context, t *models.Template) ([]byte, error) {
	return s.blobs.Download(ctx, t.FilePath)
}

// FileURL returns the public link to the template's base PDF.
func (s *Service) FileURL(t *models.Template) string {
	return s.blobs.PublicURL(t.FilePath)
}

// Delete removes the template row, then its PDF. A PDF that cannot be
// removed is logged and left behind; the template itself is gone.
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	t, err := s.GetOwned(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTemplate(ctx, t.ID); err != nil {
		return err
	}
	if err := s.blobs.Remove(ctx, t.FilePath); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		log.Printf("⚠️  Template %s deleted but its file %s was not: %v", t.ID, t.FilePath, err)
	}
	return nil
}
