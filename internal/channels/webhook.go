package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/shadehq/shade/internal/store"
)

// WebhookConnector is the receive-only channel variant. Inbound traffic
// arrives through the HTTP handler below; outbound delivery happens out of
// band, so SendMessage is a logged no-op.
type WebhookConnector struct {
	log *slog.Logger

	mu        sync.Mutex
	handler   MessageHandler
	connected bool
}

// NewWebhookConnector builds the webhook channel variant.
func NewWebhookConnector(log *slog.Logger) *WebhookConnector {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookConnector{log: log}
}

func (c *WebhookConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *WebhookConnector) Disconnect() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

func (c *WebhookConnector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SendMessage is a no-op: webhook sources have no return path.
func (c *WebhookConnector) SendMessage(ctx context.Context, externalGroupID, text string) error {
	c.log.Debug("webhook channel cannot send, dropping outbound", "target", externalGroupID)
	return nil
}

func (c *WebhookConnector) OnMessage(handler MessageHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// webhookBody is the accepted inbound payload shape.
type webhookBody struct {
	Content string `json:"content"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

// WebhookHandler serves POST /webhooks/{sourceID}. It verifies the source's
// shared secret as a hex HMAC-SHA256 of the raw body, then persists the
// inbound message via the manager.
func WebhookHandler(s *store.Store, m *Manager, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sourceID := strings.TrimPrefix(r.URL.Path, "/webhooks/")
		if sourceID == "" || strings.Contains(sourceID, "/") {
			http.NotFound(w, r)
			return
		}

		source, err := s.GetWebhookSource(sourceID)
		if err != nil {
			log.Error("webhook source lookup failed", "source", sourceID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if source == nil || !source.Enabled {
			http.NotFound(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if source.Secret != "" {
			mac := hmac.New(sha256.New, []byte(source.Secret))
			mac.Write(body)
			want := hex.EncodeToString(mac.Sum(nil))
			got := r.Header.Get("x-webhook-signature")
			if !hmac.Equal([]byte(want), []byte(got)) {
				http.Error(w, "invalid signature", http.StatusUnauthorized)
				return
			}
		}

		var payload webhookBody
		_ = json.Unmarshal(body, &payload)
		text := payload.Content
		if text == "" {
			text = payload.Message
		}
		if text == "" {
			text = string(body)
		}
		sender := payload.Sender
		if sender == "" {
			sender = source.SenderName
		}
		if sender == "" {
			sender = source.Name
		}

		if err := m.PersistInboundForGroup(source.GroupID, sender, text); err != nil {
			log.Error("webhook message persist failed", "source", sourceID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"received": true})
	})
}
