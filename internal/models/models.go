// Package models defines the data structures used throughout the application.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// The database package handles persistence; the `db` tags work with sqlx
// for column mapping. Column types that hold JSON (fields, form_values)
// implement sql.Scanner and driver.Valuer so the schema is validated at the
// storage boundary instead of leaking `map[string]any` into the app.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FieldType is the closed set of placeable field kinds.
// Go Pattern: Go has no enums, so we use a named string type with constants
// and validate on decode.
type FieldType string

const (
	FieldSignature FieldType = "signature"
	FieldText      FieldType = "text"
	FieldDate      FieldType = "date"
)

// Valid reports whether t is one of the known field kinds.
func (t FieldType) Valid() bool {
	switch t {
	case FieldSignature, FieldText, FieldDate:
		return true
	}
	return false
}

// ParseFieldType converts a raw string into a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	t := FieldType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown field type %q (want signature, text or date)", s)
	}
	return t, nil
}

// UnmarshalJSON rejects field kinds outside the closed set.
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseFieldType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Position is a document-space location: unscaled pixels from the page's
// top-left corner at 100% zoom, plus a 1-based page number.
type Position struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	PageNumber int     `json:"pageNumber"`
}

// Field is one placeable, typed, labeled slot on a template.
// The JSON shape matches documents stored by earlier versions of the app.
type Field struct {
	ID       string    `json:"id"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Position Position  `json:"position"`
	Required bool      `json:"required"`
}

// Fields is the ordered field list of a template, stored as JSONB.
// Order matters: it is the sequential fill order.
type Fields []Field

// Value implements driver.Valuer.
func (f Fields) Value() (driver.Value, error) {
	if f == nil {
		f = Fields{}
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *Fields) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	var out Fields
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("invalid fields column: %w", err)
	}
	for i, field := range out {
		if field.Label == "" {
			return fmt.Errorf("invalid fields column: field %d has an empty label", i)
		}
	}
	*f = out
	return nil
}

// FormValues maps a field label to its submitted value. Signature values are
// image data URIs.
type FormValues map[string]string

// Value implements driver.Valuer.
func (v FormValues) Value() (driver.Value, error) {
	if v == nil {
		v = FormValues{}
	}
	return json.Marshal(v)
}

// Scan implements sql.Scanner.
func (v *FormValues) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	out := FormValues{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("invalid form_values column: %w", err)
	}
	*v = out
	return nil
}

func jsonBytes(src any) ([]byte, error) {
	switch s := src.(type) {
	case []byte:
		return s, nil
	case string:
		return []byte(s), nil
	case nil:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", src)
	}
}

// Template is a base PDF plus its ordered field layout.
type Template struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Fields    Fields    `json:"fields" db:"fields"`
	FilePath  string    `json:"file_path" db:"file_path"`
	OwnerID   *string   `json:"owner_id,omitempty" db:"owner_id"` // Pointer = nullable
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SignedDocument is one completed submission against a template.
type SignedDocument struct {
	ID         string     `json:"id" db:"id"`
	TemplateID string     `json:"template_id" db:"template_id"`
	FormValues FormValues `json:"form_values" db:"form_values"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// SignedDocumentWithTemplate is a signed document joined with its template,
// which is what the view and download flows need.
type SignedDocumentWithTemplate struct {
	SignedDocument
	Template Template `json:"template"`
}

// SignedDocumentSummary is one row of the operator's document list. Values
// are left out because signature payloads are large.
type SignedDocumentSummary struct {
	ID           string    `json:"id" db:"id"`
	TemplateID   string    `json:"template_id" db:"template_id"`
	TemplateName string    `json:"template_name" db:"template_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SignatureCapture is a signature drawn on a secondary device for a
// template. Live signing sessions merge it into their values.
type SignatureCapture struct {
	ID         string    `json:"id" db:"id"`
	TemplateID string    `json:"template_id" db:"template_id"`
	Label      string    `json:"label" db:"label"`
	Value      string    `json:"value" db:"value"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// User is an operator account that owns templates.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // "-" means never serialize to JSON
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Webhook events.
const (
	EventDocumentSigned   = "document.signed"
	EventDocumentRendered = "document.rendered"
)

// ValidWebhookEvents lists the events a webhook may subscribe to.
var ValidWebhookEvents = map[string]bool{
	EventDocumentSigned:   true,
	EventDocumentRendered: true,
}

// Webhook is an operator endpoint notified about their documents.
type Webhook struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	URL       string    `json:"url" db:"url"`
	Events    []string  `json:"events" db:"events"`
	Secret    string    `json:"-" db:"secret"` // Shown once, on creation
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WebhookDelivery records one event sent to a webhook.
type WebhookDelivery struct {
	ID           string     `json:"id" db:"id"`
	WebhookID    string     `json:"webhook_id" db:"webhook_id"`
	Event        string     `json:"event" db:"event"`
	Payload      string     `json:"payload" db:"payload"`
	Status       string     `json:"status" db:"status"` // pending, success, failed
	Attempts     int        `json:"attempts" db:"attempts"`
	ResponseCode int        `json:"response_code" db:"response_code"`
	LastError    string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
}

// WebhookPayload is the JSON body POSTed to webhook URLs.
type WebhookPayload struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// DocumentEvent is the data of document.signed and document.rendered.
type DocumentEvent struct {
	DocumentID   string `json:"document_id"`
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name"`
	ViewURL      string `json:"view_url"`
}

// --- Request/Response DTOs (Data Transfer Objects) ---
// Go Pattern: Separate structs for API input/output vs database models.

// RegisterRequest is the JSON body for POST /api/v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest is the JSON body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned after register/login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreateTemplateRequest is the multipart form for POST /api/v1/templates
// (the non-interactive alternative to an editor session). Fields is a JSON
// array in the "fields" form value.
type CreateTemplateRequest struct {
	Name   string `form:"name" binding:"required"`
	Fields string `form:"fields" binding:"required"`
}

// SaveEditorRequest is the JSON body for POST /api/v1/editor/sessions/:id/save.
type SaveEditorRequest struct {
	Name string `json:"name" binding:"required"`
}

// SetValueRequest is the JSON body for PUT /api/v1/sign/sessions/:sid/values.
type SetValueRequest struct {
	Label string `json:"label" binding:"required"`
	Value string `json:"value"`
}

// StrokePoint is a single pointer sample on a signature canvas.
type StrokePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MobileSignatureRequest is the JSON body for
// POST /api/v1/sign/:templateId/mobile-signature. An empty label targets the
// template's first signature field.
type MobileSignatureRequest struct {
	Label   string `json:"label,omitempty"`
	DataURI string `json:"data_uri" binding:"required"`
}

// SignatureRequest produces a signature value. Exactly one of DataURI,
// Strokes or Name should be set: a client-rendered image, freehand strokes
// to rasterize, or a typed name to render in a cursive face.
type SignatureRequest struct {
	Label   string          `json:"label,omitempty"`
	DataURI string          `json:"data_uri,omitempty"`
	Strokes [][]StrokePoint `json:"strokes,omitempty"`
	Name    string          `json:"name,omitempty"`
	Width   int             `json:"width,omitempty"`
	Height  int             `json:"height,omitempty"`
}

// OpenCaptureRequest is the JSON body for POST /api/v1/sign/sessions/:sid/capture.
type OpenCaptureRequest struct {
	Mode  string `json:"mode" binding:"required,oneof=pad qr"`
	Label string `json:"label,omitempty"`
}

// SubmitResponse is returned when a signing session is submitted.
type SubmitResponse struct {
	DocumentID string `json:"document_id"`
	ViewURL    string `json:"view_url"`
}

// PublicTemplate is what the public signing landing page needs.
type PublicTemplate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Fields  Fields `json:"fields"`
	FileURL string `json:"file_url"`
}

// CreateWebhookRequest is the JSON body for POST /api/v1/webhooks.
type CreateWebhookRequest struct {
	URL    string   `json:"url" binding:"required,url"`
	Events []string `json:"events" binding:"required,min=1"`
}

// UpdateWebhookRequest is the JSON body for PATCH /api/v1/webhooks/:id.
type UpdateWebhookRequest struct {
	Active *bool `json:"active"`
}

// ErrorResponse is a standard error format for all API errors.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Code    int      `json:"code"`
	Fields  []string `json:"fields,omitempty"` // Offending field labels for validation errors
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Database    string `json:"database"`
	Workers     int    `json:"workers"`
	RenderCache string `json:"render_cache"`
}

// ListResponse wraps a list response.
// Go Pattern: Generics let us create type-safe containers.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}
