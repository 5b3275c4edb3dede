package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Djtrixuk/moltydex-sub000/internal/model"
	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/logger"
)

// WebhookRegistry keeps registered callback URLs in memory and notifies
// them best-effort when a swap is recorded. Delivery failures are logged
// and dropped.
type WebhookRegistry struct {
	mu    sync.RWMutex
	hooks map[string]model.Webhook
	http  *http.Client
}

func NewWebhookRegistry() *WebhookRegistry {
	return &WebhookRegistry{
		hooks: make(map[string]model.Webhook),
		http:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *WebhookRegistry) Register(url string) model.Webhook {
	hook := model.Webhook{ID: uuid.NewString(), URL: url}
	r.mu.Lock()
	r.hooks[hook.ID] = hook
	r.mu.Unlock()
	return hook
}

func (r *WebhookRegistry) List() []model.Webhook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hooks := make([]model.Webhook, 0, len(r.hooks))
	for _, h := range r.hooks {
		hooks = append(hooks, h)
	}
	return hooks
}

func (r *WebhookRegistry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hooks[id]; !ok {
		return false
	}
	delete(r.hooks, id)
	return true
}

// SwapRecorded implements SwapListener.
func (r *WebhookRegistry) SwapRecorded(rec *model.SwapRecord) {
	r.mu.RLock()
	targets := make([]string, 0, len(r.hooks))
	for _, h := range r.hooks {
		targets = append(targets, h.URL)
	}
	r.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	for _, url := range targets {
		go r.deliver(url, payload)
	}
}

func (r *WebhookRegistry) deliver(url string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		logger.Debug("webhook delivery failed", "url", url, "error", err)
		return
	}
	resp.Body.Close()
}
