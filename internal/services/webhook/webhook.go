// Package webhook notifies operators' endpoints about their documents.
//
// Events are document.signed (a recipient submitted) and document.rendered
// (the stamped PDF is ready in the render cache). Each delivery is signed
// with the webhook's HMAC secret and retried with backoff.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// Delivery statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Webhook-Signature"

// Store is the webhook persistence. *database.DB implements it.
type Store interface {
	CreateWebhook(ctx context.Context, w *models.Webhook) error
	ListWebhooksByOwner(ctx context.Context, ownerID string) ([]models.Webhook, error)
	UpdateWebhookActive(ctx context.Context, id, ownerID string, active bool) error
	DeleteWebhook(ctx context.Context, id, ownerID string) error
	GetActiveWebhooksForEvent(ctx context.Context, ownerID, event string) ([]models.Webhook, error)

	CreateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error
	UpdateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error
	ListDeliveriesByOwner(ctx context.Context, ownerID string, limit int) ([]models.WebhookDelivery, error)
}

// Service handles webhook registration and delivery.
type Service struct {
	store  Store
	client *http.Client

	// Wait before each attempt; the first is immediate.
	retryDelays []time.Duration

	shutdownCh chan struct{} // Signals pending deliveries to stop
	once       sync.Once
	wg         sync.WaitGroup
}

// New creates a new webhook service.
func New(store Store) *Service {
	return &Service{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retryDelays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
		shutdownCh:  make(chan struct{}),
	}
}

// Shutdown stops retries and waits for in-flight requests to finish.
// Call this during graceful server shutdown.
func (s *Service) Shutdown() {
	if s == nil {
		return
	}
	s.once.Do(func() { close(s.shutdownCh) })
	s.wg.Wait()
}

// GenerateSecret creates a random HMAC secret for a webhook.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SignPayload creates an HMAC-SHA256 signature for a payload.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Register validates and stores a webhook with a fresh secret. The secret
// is only ever returned here.
func (s *Service) Register(ctx context.Context, ownerID, rawURL string, events []string) (*models.Webhook, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperrors.Validation("webhook URL must be an absolute http(s) URL")
	}
	if len(events) == 0 {
		return nil, apperrors.Validation("subscribe to at least one event")
	}
	var bad []string
	for _, event := range events {
		if !models.ValidWebhookEvents[event] {
			bad = append(bad, event)
		}
	}
	if len(bad) > 0 {
		return nil, apperrors.Validation("unknown webhook event", bad...)
	}

	secret, err := GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate webhook secret: %w", err)
	}

	wh := &models.Webhook{
		OwnerID: ownerID,
		URL:     u.String(),
		Events:  events,
		Secret:  secret,
		Active:  true,
	}
	if err := s.store.CreateWebhook(ctx, wh); err != nil {
		return nil, err
	}
	return wh, nil
}

// List returns the owner's webhooks.
func (s *Service) List(ctx context.Context, ownerID string) ([]models.Webhook, error) {
	return s.store.ListWebhooksByOwner(ctx, ownerID)
}

// SetActive pauses or resumes a webhook.
func (s *Service) SetActive(ctx context.Context, id, ownerID string, active bool) error {
	return s.store.UpdateWebhookActive(ctx, id, ownerID, active)
}

// Delete removes a webhook.
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	return s.store.DeleteWebhook(ctx, id, ownerID)
}

// Deliveries returns the owner's most recent delivery attempts.
func (s *Service) Deliveries(ctx context.Context, ownerID string, limit int) ([]models.WebhookDelivery, error) {
	return s.store.ListDeliveriesByOwner(ctx, ownerID, limit)
}

// NotifyEvent sends event to the owner's subscribed webhooks. Templates
// without an owner have nobody to notify. Delivery happens asynchronously
// with retry logic.
func (s *Service) NotifyEvent(ctx context.Context, ownerID *string, event string, data any) {
	if s == nil || ownerID == nil {
		return
	}

	webhooks, err := s.store.GetActiveWebhooksForEvent(ctx, *ownerID, event)
	if err != nil {
		log.Printf("⚠️  Failed to get webhooks for event %s: %v", event, err)
		return
	}
	if len(webhooks) == 0 {
		return
	}

	payloadJSON, err := json.Marshal(models.WebhookPayload{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("⚠️  Failed to marshal webhook payload: %v", err)
		return
	}

	for _, wh := range webhooks {
		// Each delivery runs in its own goroutine; Shutdown waits for them.
		s.wg.Add(1)
		go func(wh models.Webhook) {
			defer s.wg.Done()
			s.deliverWithRetry(wh, event, payloadJSON)
		}(wh)
	}
}

// deliverWithRetry attempts delivery once per entry in retryDelays.
func (s *Service) deliverWithRetry(wh models.Webhook, event string, payloadJSON []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	delivery := &models.WebhookDelivery{
		WebhookID: wh.ID,
		Event:     event,
		Payload:   string(payloadJSON),
		Status:    StatusPending,
	}
	if err := s.store.CreateWebhookDelivery(ctx, delivery); err != nil {
		log.Printf("⚠️  Failed to create webhook delivery record: %v", err)
		return
	}

	for attempt, delay := range s.retryDelays {
		if delay > 0 {
			select {
			case <-s.shutdownCh:
				log.Printf("⚠️  Webhook delivery aborted due to shutdown: %s → %s", event, wh.URL)
				s.finish(ctx, delivery, StatusFailed, "shutdown during delivery")
				return
			case <-ctx.Done():
				log.Printf("⚠️  Webhook delivery timed out: %s → %s", event, wh.URL)
				s.finish(ctx, delivery, StatusFailed, "delivery timeout")
				return
			case <-time.After(delay):
			}
		}

		delivery.Attempts = attempt + 1
		statusCode, err := s.deliver(ctx, wh, event, payloadJSON)
		delivery.ResponseCode = statusCode

		if err == nil && statusCode >= 200 && statusCode < 300 {
			now := time.Now()
			delivery.DeliveredAt = &now
			s.finish(ctx, delivery, StatusSuccess, "")
			log.Printf("✅ Webhook delivered: %s → %s (attempt %d)", event, wh.URL, attempt+1)
			return
		}

		lastError := fmt.Sprintf("HTTP %d", statusCode)
		if err != nil {
			lastError = err.Error()
		}
		s.finish(ctx, delivery, StatusPending, lastError)
		log.Printf("⚠️  Webhook delivery failed (attempt %d/%d): %s → %s: %s",
			attempt+1, len(s.retryDelays), event, wh.URL, lastError)
	}

	s.finish(ctx, delivery, StatusFailed, delivery.LastError)
	log.Printf("❌ Webhook delivery failed permanently: %s → %s", event, wh.URL)
}

func (s *Service) finish(ctx context.Context, d *models.WebhookDelivery, status, lastError string) {
	d.Status = status
	d.LastError = lastError
	if err := s.store.UpdateWebhookDelivery(ctx, d); err != nil {
		log.Printf("⚠️  Failed to update delivery record: %v", err)
	}
}

// deliver sends a single webhook HTTP request.
func (s *Service) deliver(ctx context.Context, wh models.Webhook, event string, payloadJSON []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payloadJSON))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SignToolsAPI-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", event)
	if wh.Secret != "" {
		req.Header.Set(SignatureHeader, SignPayload(payloadJSON, wh.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
