// Package render produces the stamped PDF for a signed document: the
// template's base PDF with every submitted value drawn on it. Renders are
// deterministic, so they are cached by document id.
package render

import (
	"context"
	"fmt"
	"log"

	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// DocumentGetter loads a signed document joined with its template.
type DocumentGetter interface {
	GetSignedDocument(ctx context.Context, id string) (*models.SignedDocumentWithTemplate, error)
}

// Downloader reads blobs.
type Downloader interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// Stamper draws values onto a PDF.
type Stamper interface {
	Stamp(base []byte, fields models.Fields, values models.FormValues) ([]byte, error)
}

// Cache stores finished renders. rendercache.Cache satisfies it, including
// as a nil pointer.
type Cache interface {
	Get(ctx context.Context, documentID string) ([]byte, bool, error)
	Set(ctx context.Context, documentID string, pdf []byte) error
}

// Renderer ties the collaborators together.
type Renderer struct {
	docs    DocumentGetter
	blobs   Downloader
	stamper Stamper
	cache   Cache
}

// New creates a Renderer.
func New(docs DocumentGetter, blobs Downloader, stamper Stamper, cache Cache) *Renderer {
	return &Renderer{docs: docs, blobs: blobs, stamper: stamper, cache: cache}
}

// Document loads the signed document record.
func (r *Renderer) Document(ctx context.Context, id string) (*models.SignedDocumentWithTemplate, error) {
	return r.docs.GetSignedDocument(ctx, id)
}

// Render returns the stamped PDF for doc, from the cache when possible.
// Cache failures are logged and never fail the render.
func (r *Renderer) Render(ctx context.Context, doc *models.SignedDocumentWithTemplate) ([]byte, error) {
	if pdf, ok, err := r.cache.Get(ctx, doc.ID); err != nil {
		log.Printf("⚠️  Render cache read failed for %s: %v", doc.ID, err)
	} else if ok {
		return pdf, nil
	}

	base, err := r.blobs.Download(ctx, doc.Template.FilePath)
	if err != nil {
		return nil, err
	}
	pdf, err := r.stamper.Stamp(base, doc.Template.Fields, doc.FormValues)
	if err != nil {
		return nil, fmt.Errorf("failed to stamp document %s: %w", doc.ID, err)
	}

	if err := r.cache.Set(ctx, doc.ID, pdf); err != nil {
		log.Printf("⚠️  Render cache write failed for %s: %v", doc.ID, err)
	}
	return pdf, nil
}

// RenderByID loads the document and renders it.
func (r *Renderer) RenderByID(ctx context.Context, id string) ([]byte, *models.SignedDocumentWithTemplate, error) {
	doc, err := r.docs.GetSignedDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	pdf, err := r.Render(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	return pdf, doc, nil
}
