package service

import (
	"context"
	"sort"
	"sync"

	"github.com/plantline/convo/internal/config"
	"github.com/plantline/convo/internal/entity"
)

// memStore is an in-memory implementation of every store interface,
// mirroring the contracts of the gorm repositories.
type memStore struct {
	mu       sync.Mutex
	convs    map[string]*entity.Conversation
	byPair   map[string]string
	parts    map[string]*entity.ConversationParticipant
	msgs     map[string]*entity.Message
	receipts map[string]*entity.MessageReadReceipt
	notifs   []*entity.Notification
	outbox   []*entity.OutboxEvent
	seqs     map[string]int64
	clock    int64
}

// tick returns a strictly increasing timestamp so recency ordering is
// deterministic even within one millisecond
func (m *memStore) tick() int64 {
	m.clock++
	return entity.NowUnixMilli() + m.clock
}

func newMemStore() *memStore {
	return &memStore{
		convs:    make(map[string]*entity.Conversation),
		byPair:   make(map[string]string),
		parts:    make(map[string]*entity.ConversationParticipant),
		msgs:     make(map[string]*entity.Message),
		receipts: make(map[string]*entity.MessageReadReceipt),
		seqs:     make(map[string]int64),
	}
}

func partKey(conversationId, userId string) string {
	return conversationId + "|" + userId
}

func receiptKey(messageId, userId string) string {
	return messageId + "|" + userId
}

// ConversationStore

func (m *memStore) CreateDirect(ctx context.Context, conv *entity.Conversation, participants []*entity.ConversationParticipant) (*entity.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingId, ok := m.byPair[*conv.PairKey]; ok {
		return m.convs[existingId], false, nil
	}

	conv.UpdatedAt = m.tick()
	m.convs[conv.Id] = conv
	m.byPair[*conv.PairKey] = conv.Id
	for _, p := range participants {
		p.ConversationId = conv.Id
		m.upsertParticipantLocked(p)
	}
	return conv, true, nil
}

func (m *memStore) CreateGroup(ctx context.Context, conv *entity.Conversation, participants []*entity.ConversationParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv.UpdatedAt = m.tick()
	m.convs[conv.Id] = conv
	for _, p := range participants {
		p.ConversationId = conv.Id
		m.upsertParticipantLocked(p)
	}
	return nil
}

func (m *memStore) GetById(ctx context.Context, id string) (*entity.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.convs[id], nil
}

func (m *memStore) ListForUser(ctx context.Context, userId string) ([]*entity.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*entity.ConversationSummary
	for _, conv := range m.convs {
		p := m.parts[partKey(conv.Id, userId)]
		if p == nil || !p.IsActive {
			continue
		}
		out = append(out, &entity.ConversationSummary{
			Conversation:   *conv,
			LastMessageSeq: m.seqs[conv.Id],
			UnreadCount:    m.countUnreadLocked(conv.Id, userId),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}

// ParticipantStore

func (m *memStore) Get(ctx context.Context, conversationId, userId string) (*entity.ConversationParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parts[partKey(conversationId, userId)], nil
}

func (m *memStore) ListActive(ctx context.Context, conversationId string) ([]*entity.ConversationParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*entity.ConversationParticipant
	for _, p := range m.parts {
		if p.ConversationId == conversationId && p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserId < out[j].UserId })
	return out, nil
}

func (m *memStore) Upsert(ctx context.Context, p *entity.ConversationParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertParticipantLocked(p)
	return nil
}

// upsertParticipantLocked reactivates an existing row, keeping its read
// cursor, or inserts a new one.
func (m *memStore) upsertParticipantLocked(p *entity.ConversationParticipant) {
	key := partKey(p.ConversationId, p.UserId)
	if existing, ok := m.parts[key]; ok {
		existing.IsActive = true
		existing.JoinedAt = p.JoinedAt
		return
	}
	m.parts[key] = p
}

func (m *memStore) Deactivate(ctx context.Context, conversationId, userId string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.parts[partKey(conversationId, userId)]; ok {
		p.IsActive = false
		p.UpdatedAt = at
	}
	return nil
}

func (m *memStore) AdvanceReadCursor(ctx context.Context, conversationId, userId string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parts[partKey(conversationId, userId)]
	if !ok {
		return nil
	}
	if p.LastReadAt == nil || *p.LastReadAt < at {
		p.LastReadAt = &at
	}
	return nil
}

// MessageStore

func (m *memStore) Append(ctx context.Context, msg *entity.Message, evt *entity.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.msgs[msg.Id] = msg
	if msg.Seq > m.seqs[msg.ConversationId] {
		m.seqs[msg.ConversationId] = msg.Seq
	}
	if conv, ok := m.convs[msg.ConversationId]; ok {
		conv.UpdatedAt = m.tick()
	}
	m.outbox = append(m.outbox, evt)
	return nil
}

func (m *memStore) GetMessageById(ctx context.Context, id string) (*entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msgs[id], nil
}

func (m *memStore) ListBefore(ctx context.Context, conversationId string, beforeSeq int64, limit int) ([]*entity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*entity.Message
	for _, msg := range m.msgs {
		if msg.ConversationId != conversationId {
			continue
		}
		if beforeSeq > 0 && msg.Seq >= beforeSeq {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ApplyEdit(ctx context.Context, id, content string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.msgs[id]; ok {
		msg.Content = content
		msg.IsEdited = true
		msg.UpdatedAt = at
	}
	return nil
}

func (m *memStore) ApplyDelete(ctx context.Context, id string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.msgs[id]; ok {
		msg.IsDeleted = true
		msg.Content = ""
		msg.FileUrl = ""
		msg.FileName = ""
		msg.FileSize = 0
		msg.FileStorageId = ""
		msg.UpdatedAt = at
	}
	return nil
}

// SeqAllocator

func (m *memStore) Alloc(ctx context.Context, conversationId string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.seqs[conversationId] + 1
	return next, nil
}

func (m *memStore) Max(ctx context.Context, conversationId string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seqs[conversationId], nil
}

// ReceiptStore

func (m *memStore) InsertUpTo(ctx context.Context, conversationId, userId string, uptoSeq, readAt int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var inserted int64
	for _, msg := range m.msgs {
		if msg.ConversationId != conversationId || msg.Seq > uptoSeq || msg.SenderId == userId {
			continue
		}
		key := receiptKey(msg.Id, userId)
		if _, ok := m.receipts[key]; ok {
			continue
		}
		m.receipts[key] = &entity.MessageReadReceipt{
			MessageId:      msg.Id,
			UserId:         userId,
			ConversationId: conversationId,
			Seq:            msg.Seq,
			ReadAt:         readAt,
		}
		inserted++
	}
	return inserted, nil
}

func (m *memStore) InsertOne(ctx context.Context, receipt *entity.MessageReadReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := receiptKey(receipt.MessageId, receipt.UserId)
	if _, ok := m.receipts[key]; !ok {
		m.receipts[key] = receipt
	}
	return nil
}

func (m *memStore) Has(ctx context.Context, messageId, userId string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.receipts[receiptKey(messageId, userId)]
	return ok, nil
}

func (m *memStore) CountUnread(ctx context.Context, conversationId, userId string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countUnreadLocked(conversationId, userId), nil
}

func (m *memStore) countUnreadLocked(conversationId, userId string) int64 {
	var count int64
	for _, msg := range m.msgs {
		if msg.ConversationId != conversationId || msg.SenderId == userId || msg.IsDeleted {
			continue
		}
		if _, ok := m.receipts[receiptKey(msg.Id, userId)]; !ok {
			count++
		}
	}
	return count
}

// NotificationStore

func (m *memStore) Create(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.notifs {
		if existing.UserId == n.UserId && existing.Type == n.Type &&
			existing.MessageId != nil && n.MessageId != nil && *existing.MessageId == *n.MessageId {
			return nil
		}
	}
	m.notifs = append(m.notifs, n)
	return nil
}

func (m *memStore) GetNotificationById(ctx context.Context, id string) (*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifs {
		if n.Id == id {
			return n, nil
		}
	}
	return nil, nil
}

func (m *memStore) List(ctx context.Context, userId string, unreadOnly bool, beforeId string, limit int) ([]*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*entity.Notification
	for i := len(m.notifs) - 1; i >= 0; i-- {
		n := m.notifs[i]
		if n.UserId != userId {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		if beforeId != "" && n.Id >= beforeId {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) MarkRead(ctx context.Context, id string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifs {
		if n.Id == id {
			n.IsRead = true
			n.UpdatedAt = at
		}
	}
	return nil
}

// messageStoreAdapter disambiguates GetById between MessageStore and
// NotificationStore on the shared memStore.
type messageStoreAdapter struct{ *memStore }

func (a messageStoreAdapter) GetById(ctx context.Context, id string) (*entity.Message, error) {
	return a.GetMessageById(ctx, id)
}

type notificationStoreAdapter struct{ *memStore }

func (a notificationStoreAdapter) GetById(ctx context.Context, id string) (*entity.Notification, error) {
	return a.GetNotificationById(ctx, id)
}

type conversationStoreAdapter struct{ *memStore }

func (a conversationStoreAdapter) GetById(ctx context.Context, id string) (*entity.Conversation, error) {
	return a.memStore.GetById(ctx, id)
}

func testConfig() *config.Config {
	return &config.Config{
		Message: config.MessageConfig{
			DeletedContentMode: "blank",
			MaxPageSize:        100,
			PreviewLength:      120,
		},
	}
}

// newTestServices wires every service onto one shared in-memory store
func newTestServices() (*memStore, *ConversationService, *MessageService, *ReadReceiptService, *NotificationService) {
	store := newMemStore()
	convs := conversationStoreAdapter{store}
	msgs := messageStoreAdapter{store}
	notifs := notificationStoreAdapter{store}

	convService := NewConversationService(convs, store, store)
	msgService := NewMessageService(msgs, convs, store, store, store, testConfig())
	readService := NewReadReceiptService(store, store, msgs)
	notifyService := NewNotificationService(notifs)
	return store, convService, msgService, readService, notifyService
}
