package channels

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/shadehq/shade/internal/store"
)

func newWebhookServer(t *testing.T) (*httptest.Server, *store.Store, *store.Group) {
	t.Helper()
	s := newTestStore(t)

	ch := &store.Channel{ID: uuid.NewString(), Type: store.ChannelTypeWebhook}
	if err := s.CreateChannel(ch); err != nil {
		t.Fatal(err)
	}
	g := &store.Group{
		ID: uuid.NewString(), ChannelID: ch.ID,
		Name: "alerts", Folder: "alerts-" + uuid.NewString()[:8],
	}
	if err := s.CreateGroup(g); err != nil {
		t.Fatal(err)
	}

	m := NewManager(s, func(*store.Channel, *slog.Logger) (Connector, error) {
		return NewWebhookConnector(nil), nil
	}, nil)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(WebhookHandler(s, m, nil))
	t.Cleanup(server.Close)
	return server, s, g
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookUnknownSource404(t *testing.T) {
	server, _, _ := newWebhookServer(t)

	resp, err := http.Post(server.URL+"/webhooks/ghost", "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWebhookDisabledSource404(t *testing.T) {
	server, s, g := newWebhookServer(t)
	src := &store.WebhookSource{ID: uuid.NewString(), GroupID: g.ID, Enabled: false}
	if err := s.CreateWebhookSource(src); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(server.URL+"/webhooks/"+src.ID, "application/json", bytes.NewBufferString(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWebhookBadSignature401(t *testing.T) {
	server, s, g := newWebhookServer(t)
	src := &store.WebhookSource{ID: uuid.NewString(), GroupID: g.ID, Secret: "topsecret", Enabled: true}
	if err := s.CreateWebhookSource(src); err != nil {
		t.Fatal(err)
	}

	body := []byte(`{"content":"hi"}`)
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/webhooks/"+src.ID, bytes.NewReader(body))
	req.Header.Set("x-webhook-signature", "deadbeef")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWebhookValidSignatureStoresMessage(t *testing.T) {
	server, s, g := newWebhookServer(t)
	src := &store.WebhookSource{
		ID: uuid.NewString(), GroupID: g.ID, Secret: "topsecret",
		Enabled: true, SenderName: "pager",
	}
	if err := s.CreateWebhookSource(src); err != nil {
		t.Fatal(err)
	}

	body := []byte(`{"content":"disk full on web-1"}`)
	req, _ := http.NewRequest(http.MethodPost, server.URL+"/webhooks/"+src.ID, bytes.NewReader(body))
	req.Header.Set("x-webhook-signature", sign("topsecret", body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var ack map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		t.Fatal(err)
	}
	if !ack["received"] {
		t.Error("expected received:true")
	}

	msgs, err := s.ListUnprocessedMessages(g.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "disk full on web-1" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if msgs[0].SenderName != "pager" {
		t.Errorf("expected sender pager, got %s", msgs[0].SenderName)
	}
}

func TestWebhookNoSecretAccepts(t *testing.T) {
	server, s, g := newWebhookServer(t)
	src := &store.WebhookSource{ID: uuid.NewString(), GroupID: g.ID, Enabled: true}
	if err := s.CreateWebhookSource(src); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(server.URL+"/webhooks/"+src.ID, "application/json",
		bytes.NewBufferString(`{"message":"plain"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	msgs, _ := s.ListUnprocessedMessages(g.ID, 10)
	if len(msgs) != 1 || msgs[0].Content != "plain" {
		t.Errorf("unexpected messages %+v", msgs)
	}
}
