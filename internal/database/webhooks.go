// webhooks.go handles webhook persistence.
package database

import (
	"context"

	"github.com/lib/pq"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

const webhookColumns = `id, owner_id, url, events, secret, active, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWebhook(row rowScanner) (models.Webhook, error) {
	var w models.Webhook
	// pq.Array adapts the TEXT[] column to a Go slice.
	err := row.Scan(&w.ID, &w.OwnerID, &w.URL, pq.Array(&w.Events), &w.Secret, &w.Active, &w.CreatedAt)
	return w, err
}

// CreateWebhook inserts a new webhook record.
func (db *DB) CreateWebhook(ctx context.Context, w *models.Webhook) error {
	query := `
		INSERT INTO webhooks (owner_id, url, events, secret, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := db.QueryRowContext(ctx, query,
		w.OwnerID, w.URL, pq.Array(w.Events), w.Secret, w.Active,
	).Scan(&w.ID, &w.CreatedAt)
	return queryErr("insert webhook", err)
}

// ListWebhooksByOwner returns the owner's webhooks, newest first.
func (db *DB) ListWebhooksByOwner(ctx context.Context, ownerID string) ([]models.Webhook, error) {
	return db.queryWebhooks(ctx, "list webhooks",
		`SELECT `+webhookColumns+` FROM webhooks WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

// GetActiveWebhooksForEvent returns the owner's active webhooks that
// subscribe to event.
func (db *DB) GetActiveWebhooksForEvent(ctx context.Context, ownerID, event string) ([]models.Webhook, error) {
	return db.queryWebhooks(ctx, "webhooks for event",
		`SELECT `+webhookColumns+` FROM webhooks WHERE owner_id = $1 AND active = true AND $2 = ANY(events)`,
		ownerID, event)
}

func (db *DB) queryWebhooks(ctx context.Context, op, query string, args ...any) ([]models.Webhook, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryErr(op, err)
	}
	defer rows.Close()

	webhooks := []models.Webhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, queryErr(op, err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, queryErr(op, rows.Err())
}

// UpdateWebhookActive toggles a webhook's active state. Other owners'
// webhooks are reported as not found.
func (db *DB) UpdateWebhookActive(ctx context.Context, id, ownerID string, active bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE webhooks SET active = $3 WHERE id = $1 AND owner_id = $2`, id, ownerID, active)
	if err != nil {
		return queryErr("update webhook", err)
	}
	return expectOneRow("update webhook", result)
}

// DeleteWebhook removes a webhook and its delivery history.
func (db *DB) DeleteWebhook(ctx context.Context, id, ownerID string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return queryErr("delete webhook", err)
	}
	return expectOneRow("delete webhook", result)
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func expectOneRow(op string, result rowsAffected) error {
	n, err := result.RowsAffected()
	if err != nil {
		return queryErr(op, err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// CreateWebhookDelivery inserts a new webhook delivery record.
func (db *DB) CreateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (webhook_id, event, payload, status, attempts, last_error, response_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := db.QueryRowContext(ctx, query,
		d.WebhookID, d.Event, d.Payload, d.Status, d.Attempts, d.LastError, d.ResponseCode,
	).Scan(&d.ID, &d.CreatedAt)
	return queryErr("insert webhook delivery", err)
}

// UpdateWebhookDelivery updates a delivery record after an attempt.
func (db *DB) UpdateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	query := `
		UPDATE webhook_deliveries
		SET status = $2, attempts = $3, last_error = $4, response_code = $5, delivered_at = $6
		WHERE id = $1`

	_, err := db.ExecContext(ctx, query,
		d.ID, d.Status, d.Attempts, d.LastError, d.ResponseCode, d.DeliveredAt,
	)
	return queryErr("update webhook delivery", err)
}

// ListDeliveriesByOwner returns recent deliveries across the owner's webhooks.
func (db *DB) ListDeliveriesByOwner(ctx context.Context, ownerID string, limit int) ([]models.WebhookDelivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	deliveries := []models.WebhookDelivery{}
	err := db.SelectContext(ctx, &deliveries,
		`SELECT wd.* FROM webhook_deliveries wd
		 JOIN webhooks w ON w.id = wd.webhook_id
		 WHERE w.owner_id = $1
		 ORDER BY wd.created_at DESC LIMIT $2`,
		ownerID, limit)
	if err != nil {
		return nil, queryErr("list webhook deliveries", err)
	}
	return deliveries, nil
}
