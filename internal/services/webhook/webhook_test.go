package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

type fakeStore struct {
	mu         sync.Mutex
	webhooks   []models.Webhook
	deliveries map[string]*models.WebhookDelivery
}

func newFakeStore() *fakeStore {
	return &fakeStore{deliveries: map[string]*models.WebhookDelivery{}}
}

func (f *fakeStore) CreateWebhook(_ context.Context, w *models.Webhook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.ID = "wh-" + strconv.Itoa(len(f.webhooks)+1)
	w.CreatedAt = time.Now()
	f.webhooks = append(f.webhooks, *w)
	return nil
}

func (f *fakeStore) ListWebhooksByOwner(_ context.Context, ownerID string) ([]models.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Webhook
	for _, w := range f.webhooks {
		if w.OwnerID == ownerID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateWebhookActive(_ context.Context, id, ownerID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.webhooks {
		if f.webhooks[i].ID == id && f.webhooks[i].OwnerID == ownerID {
			f.webhooks[i].Active = active
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (f *fakeStore) DeleteWebhook(context.Context, string, string) error { return nil }

func (f *fakeStore) GetActiveWebhooksForEvent(_ context.Context, ownerID, event string) ([]models.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Webhook
	for _, w := range f.webhooks {
		if w.OwnerID != ownerID || !w.Active {
			continue
		}
		for _, e := range w.Events {
			if e == event {
				out = append(out, w)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CreateWebhookDelivery(_ context.Context, d *models.WebhookDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.ID = "d-" + strconv.Itoa(len(f.deliveries)+1)
	copied := *d
	f.deliveries[d.ID] = &copied
	return nil
}

func (f *fakeStore) UpdateWebhookDelivery(_ context.Context, d *models.WebhookDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *d
	f.deliveries[d.ID] = &copied
	return nil
}

func (f *fakeStore) ListDeliveriesByOwner(context.Context, string, int) ([]models.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WebhookDelivery
	for _, d := range f.deliveries {
		out = append(out, *d)
	}
	return out, nil
}

func fastService(store Store) *Service {
	s := New(store)
	s.retryDelays = []time.Duration{0, time.Millisecond, time.Millisecond}
	return s
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		events  []string
		wantErr bool
	}{
		{"valid", "https://example.com/hooks", []string{models.EventDocumentSigned}, false},
		{"both events", "http://localhost:9000/x", []string{models.EventDocumentSigned, models.EventDocumentRendered}, false},
		{"relative url", "/hooks", []string{models.EventDocumentSigned}, true},
		{"ftp url", "ftp://example.com", []string{models.EventDocumentSigned}, true},
		{"no events", "https://example.com", nil, true},
		{"unknown event", "https://example.com", []string{"transcript.completed"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(newFakeStore())
			wh, err := s.Register(context.Background(), "owner", tt.url, tt.events)
			if tt.wantErr {
				var ve *apperrors.ValidationError
				assert.ErrorAs(t, err, &ve)
				return
			}
			require.NoError(t, err)
			assert.True(t, wh.Active)
			assert.Len(t, wh.Secret, 64)
			assert.NotEmpty(t, wh.ID)
		})
	}
}

func TestSignPayload(t *testing.T) {
	a := SignPayload([]byte(`{"x":1}`), "secret")
	assert.Len(t, a, 64)
	assert.Equal(t, a, SignPayload([]byte(`{"x":1}`), "secret"))
	assert.NotEqual(t, a, SignPayload([]byte(`{"x":1}`), "other"))
}

func TestNotifyEventDelivers(t *testing.T) {
	type received struct {
		body      []byte
		signature string
		event     string
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body, r.Header.Get(SignatureHeader), r.Header.Get("X-Webhook-Event")}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := newFakeStore()
	s := fastService(store)
	wh, err := s.Register(context.Background(), "owner", srv.URL, []string{models.EventDocumentSigned})
	require.NoError(t, err)

	owner := "owner"
	s.NotifyEvent(context.Background(), &owner, models.EventDocumentSigned, models.DocumentEvent{DocumentID: "doc-1"})
	s.Shutdown()

	r := <-got
	assert.Equal(t, models.EventDocumentSigned, r.event)
	assert.Equal(t, SignPayload(r.body, wh.Secret), r.signature)

	var payload struct {
		Event string               `json:"event"`
		Data  models.DocumentEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(r.body, &payload))
	assert.Equal(t, "doc-1", payload.Data.DocumentID)

	deliveries, _ := store.ListDeliveriesByOwner(context.Background(), "owner", 10)
	require.Len(t, deliveries, 1)
	assert.Equal(t, StatusSuccess, deliveries[0].Status)
	assert.Equal(t, 1, deliveries[0].Attempts)
	assert.Equal(t, http.StatusNoContent, deliveries[0].ResponseCode)
	assert.NotNil(t, deliveries[0].DeliveredAt)
}

func TestNotifyEventRetriesThenFails(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := newFakeStore()
	s := fastService(store)
	_, err := s.Register(context.Background(), "owner", srv.URL, []string{models.EventDocumentRendered})
	require.NoError(t, err)

	owner := "owner"
	s.NotifyEvent(context.Background(), &owner, models.EventDocumentRendered, nil)
	// Let every attempt run before shutdown interrupts the backoff.
	require.Eventually(t, func() bool { return hits.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	s.Shutdown()

	deliveries, _ := store.ListDeliveriesByOwner(context.Background(), "owner", 10)
	require.Len(t, deliveries, 1)
	assert.Equal(t, StatusFailed, deliveries[0].Status)
	assert.Equal(t, 3, deliveries[0].Attempts)
	assert.Equal(t, "HTTP 502", deliveries[0].LastError)
}

func TestNotifyEventSkips(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	store := newFakeStore()
	s := fastService(store)
	paused, err := s.Register(context.Background(), "owner", srv.URL, []string{models.EventDocumentSigned})
	require.NoError(t, err)
	require.NoError(t, s.SetActive(context.Background(), paused.ID, "owner", false))
	_, err = s.Register(context.Background(), "owner", srv.URL, []string{models.EventDocumentRendered})
	require.NoError(t, err)

	owner, stranger := "owner", "stranger"
	s.NotifyEvent(context.Background(), nil, models.EventDocumentSigned, nil)
	s.NotifyEvent(context.Background(), &stranger, models.EventDocumentSigned, nil)
	s.NotifyEvent(context.Background(), &owner, models.EventDocumentSigned, nil)
	s.Shutdown()

	assert.Zero(t, hits.Load())
	assert.ErrorIs(t, s.SetActive(context.Background(), paused.ID, "stranger", true), apperrors.ErrNotFound)

	var nilService *Service
	nilService.NotifyEvent(context.Background(), &owner, models.EventDocumentSigned, nil)
	nilService.Shutdown()
}
