package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shadehq/shade/internal/store"
)

// ConnectorFactory builds a connector for a channel record. Injectable so
// tests can supply fakes.
type ConnectorFactory func(ch *store.Channel, log *slog.Logger) (Connector, error)

// DefaultFactory maps channel types to their real connectors.
func DefaultFactory(ch *store.Channel, log *slog.Logger) (Connector, error) {
	switch ch.Type {
	case store.ChannelTypeSlack:
		return NewSlackConnector(ch.Config, log)
	case store.ChannelTypeWebhook:
		return NewWebhookConnector(log), nil
	default:
		return nil, fmt.Errorf("unknown channel type %q", ch.Type)
	}
}

// Manager owns one connector per configured channel plus the group lookup
// caches keyed by internal id and by channel-scoped external id.
type Manager struct {
	store   *store.Store
	factory ConnectorFactory
	log     *slog.Logger

	mu               sync.RWMutex
	connectors       map[string]Connector    // by channel id
	groupsByID       map[string]*store.Group // by internal id
	groupsByExternal map[string]*store.Group // by channelID + "|" + externalID

	inboundMu   sync.Mutex
	inboundSeen map[string]time.Time // dedupe key -> expiry
}

// inboundSeenTTL bounds how long a delivered external message id is
// remembered for dedupe.
const inboundSeenTTL = 10 * time.Minute

// NewManager builds a channel manager. A nil factory selects the real
// connectors.
func NewManager(s *store.Store, factory ConnectorFactory, log *slog.Logger) *Manager {
	if factory == nil {
		factory = DefaultFactory
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:            s,
		factory:          factory,
		log:              log,
		connectors:       make(map[string]Connector),
		groupsByID:       make(map[string]*store.Group),
		groupsByExternal: make(map[string]*store.Group),
		inboundSeen:      make(map[string]time.Time),
	}
}

// seenInbound records a dedupe key and reports whether it was already seen
// within the TTL. Slack fires both a message and an app_mention event for
// one mention; only the first delivery may persist.
func (m *Manager) seenInbound(key string, now time.Time) bool {
	m.inboundMu.Lock()
	defer m.inboundMu.Unlock()
	for k, expiry := range m.inboundSeen {
		if now.After(expiry) {
			delete(m.inboundSeen, k)
		}
	}
	if _, ok := m.inboundSeen[key]; ok {
		return true
	}
	m.inboundSeen[key] = now.Add(inboundSeenTTL)
	return false
}

func externalKey(channelID, externalID string) string {
	return channelID + "|" + externalID
}

// Initialize loads all channels and groups, builds the caches and connects
// every channel. A connector that fails to connect marks its channel error
// and is skipped; other channels proceed.
func (m *Manager) Initialize(ctx context.Context) error {
	groups, err := m.store.ListGroups()
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}
	chans, err := m.store.ListChannels()
	if err != nil {
		return fmt.Errorf("failed to load channels: %w", err)
	}

	m.mu.Lock()
	for _, g := range groups {
		m.groupsByID[g.ID] = g
		if g.ExternalID != "" {
			m.groupsByExternal[externalKey(g.ChannelID, g.ExternalID)] = g
		}
	}
	m.mu.Unlock()

	for _, ch := range chans {
		conn, err := m.factory(ch, m.log)
		if err != nil {
			m.log.Error("channel setup failed", "channel", ch.ID, "type", ch.Type, "error", err)
			m.markChannelError(ch.ID)
			continue
		}

		channelID := ch.ID
		conn.OnMessage(func(msg InboundMessage) {
			m.HandleInbound(channelID, msg)
		})

		if err := conn.Connect(ctx); err != nil {
			m.log.Error("channel connect failed", "channel", ch.ID, "type", ch.Type, "error", err)
			m.markChannelError(ch.ID)
			continue
		}

		m.mu.Lock()
		m.connectors[ch.ID] = conn
		m.mu.Unlock()

		now := time.Now()
		if err := m.store.UpdateChannelStatus(ch.ID, store.ChannelStatusActive, &now); err != nil {
			m.log.Warn("failed to stamp channel status", "channel", ch.ID, "error", err)
		}
		m.log.Info("channel connected", "channel", ch.ID, "type", ch.Type)
	}
	return nil
}

func (m *Manager) markChannelError(channelID string) {
	if err := m.store.UpdateChannelStatus(channelID, store.ChannelStatusError, nil); err != nil {
		m.log.Warn("failed to mark channel error", "channel", channelID, "error", err)
	}
}

// HandleInbound resolves an external group id and persists the message.
// Messages for unknown groups are dropped silently.
func (m *Manager) HandleInbound(channelID string, msg InboundMessage) {
	m.mu.RLock()
	group := m.groupsByExternal[externalKey(channelID, msg.ExternalGroupID)]
	m.mu.RUnlock()
	if group == nil {
		m.log.Debug("inbound message for unknown group dropped",
			"channel", channelID, "external_group", msg.ExternalGroupID)
		return
	}

	if msg.ExternalMessageID != "" &&
		m.seenInbound(channelID+":"+msg.ExternalGroupID+":"+msg.ExternalMessageID, time.Now()) {
		m.log.Debug("duplicate inbound event dropped",
			"channel", channelID, "external_message", msg.ExternalMessageID)
		return
	}

	err := m.store.CreateMessage(&store.Message{
		ID:               uuid.NewString(),
		GroupID:          group.ID,
		ChannelID:        channelID,
		ExternalID:       msg.ExternalMessageID,
		SenderName:       msg.SenderName,
		SenderExternalID: msg.SenderID,
		Content:          msg.Text,
		IsFromBot:        false,
	})
	if err != nil {
		m.log.Error("failed to persist inbound message", "group", group.ID, "error", err)
	}
}

// PersistInboundForGroup stores an inbound message already resolved to an
// internal group, used by the webhook endpoint.
func (m *Manager) PersistInboundForGroup(groupID, sender, text string) error {
	m.mu.RLock()
	group := m.groupsByID[groupID]
	m.mu.RUnlock()
	if group == nil {
		// Cache may predate the group; fall back to the store.
		g, err := m.store.GetGroup(groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return fmt.Errorf("unknown group %s", groupID)
		}
		m.mu.Lock()
		m.groupsByID[g.ID] = g
		if g.ExternalID != "" {
			m.groupsByExternal[externalKey(g.ChannelID, g.ExternalID)] = g
		}
		m.mu.Unlock()
		group = g
	}

	return m.store.CreateMessage(&store.Message{
		ID:         uuid.NewString(),
		GroupID:    group.ID,
		ChannelID:  group.ChannelID,
		SenderName: sender,
		Content:    text,
		IsFromBot:  false,
	})
}

// SendMessageToGroup resolves the group to its channel and external id,
// delivers via the connector, then persists the outbound message.
func (m *Manager) SendMessageToGroup(ctx context.Context, groupID, text string) error {
	m.mu.RLock()
	group := m.groupsByID[groupID]
	m.mu.RUnlock()
	if group == nil {
		return fmt.Errorf("unknown group %s", groupID)
	}
	return m.SendMessage(ctx, group.ChannelID, group.ExternalID, text)
}

// SendMessage is the lower-level send used when the channel is already
// known. The outbound message is persisted with is_from_bot set.
func (m *Manager) SendMessage(ctx context.Context, channelID, externalGroupID, text string) error {
	m.mu.RLock()
	conn := m.connectors[channelID]
	group := m.groupsByExternal[externalKey(channelID, externalGroupID)]
	m.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("no connector for channel %s", channelID)
	}

	if err := conn.SendMessage(ctx, externalGroupID, text); err != nil {
		return err
	}

	if group != nil {
		err := m.store.CreateMessage(&store.Message{
			ID:        uuid.NewString(),
			GroupID:   group.ID,
			ChannelID: channelID,
			Content:   text,
			IsFromBot: true,
		})
		if err != nil {
			m.log.Error("failed to persist outbound message", "group", group.ID, "error", err)
		}
	}
	return nil
}

// Groups returns the cached group list.
func (m *Manager) Groups() []*store.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*store.Group, 0, len(m.groupsByID))
	for _, g := range m.groupsByID {
		out = append(out, g)
	}
	return out
}

// GroupByID returns a cached group, or nil.
func (m *Manager) GroupByID(id string) *store.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groupsByID[id]
}

// DisconnectAll tears down every connector and clears the caches.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, conn := range m.connectors {
		if err := conn.Disconnect(); err != nil {
			m.log.Warn("disconnect failed", "channel", id, "error", err)
		}
	}
	m.connectors = make(map[string]Connector)
	m.groupsByID = make(map[string]*store.Group)
	m.groupsByExternal = make(map[string]*store.Group)
}
