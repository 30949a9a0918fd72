package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/plantline/convo/internal/config"
	"github.com/plantline/convo/internal/entity"
	"github.com/plantline/convo/pkg/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutbox struct {
	events      []*entity.OutboxEvent
	done        []int64
	failed      map[int64]string
	rescheduled map[int64]int32
	nextAt      map[int64]int64
}

func newFakeOutbox(events ...*entity.OutboxEvent) *fakeOutbox {
	return &fakeOutbox{
		events:      events,
		failed:      make(map[int64]string),
		rescheduled: make(map[int64]int32),
		nextAt:      make(map[int64]int64),
	}
}

func (f *fakeOutbox) ClaimDue(ctx context.Context, now int64, limit int) ([]*entity.OutboxEvent, error) {
	var due []*entity.OutboxEvent
	for _, e := range f.events {
		if e.Status == constant.OutboxStatusPending && e.NextAttemptAt <= now && len(due) < limit {
			due = append(due, e)
		}
	}
	return due, nil
}

func (f *fakeOutbox) MarkDone(ctx context.Context, id int64) error {
	f.done = append(f.done, id)
	for _, e := range f.events {
		if e.Id == id {
			e.Status = constant.OutboxStatusDone
		}
	}
	return nil
}

func (f *fakeOutbox) Reschedule(ctx context.Context, id int64, attempts int32, nextAttemptAt int64, lastError string) error {
	f.rescheduled[id] = attempts
	f.nextAt[id] = nextAttemptAt
	for _, e := range f.events {
		if e.Id == id {
			e.Attempts = attempts
			e.NextAttemptAt = nextAttemptAt
			e.LastError = lastError
		}
	}
	return nil
}

func (f *fakeOutbox) MarkFailed(ctx context.Context, id int64, lastError string) error {
	f.failed[id] = lastError
	for _, e := range f.events {
		if e.Id == id {
			e.Status = constant.OutboxStatusFailed
		}
	}
	return nil
}

type fakeParticipants struct {
	byConv map[string][]*entity.ConversationParticipant
}

func (f *fakeParticipants) ListActive(ctx context.Context, conversationId string) ([]*entity.ConversationParticipant, error) {
	var active []*entity.ConversationParticipant
	for _, p := range f.byConv[conversationId] {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}

type fakeReceipts struct {
	mu          sync.Mutex
	seen        map[string]bool
	invalidated []string
}

func (f *fakeReceipts) Has(ctx context.Context, messageId, userId string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[messageId+":"+userId], nil
}

func (f *fakeReceipts) InvalidateUnread(ctx context.Context, conversationId string, userIds ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userIds...)
}

type fakeSink struct {
	mu      sync.Mutex
	created []*entity.Notification
	err     error
}

func (f *fakeSink) Create(ctx context.Context, n *entity.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	// Same dedup contract as the notification repository
	for _, existing := range f.created {
		if existing.UserId == n.UserId && existing.Type == n.Type &&
			existing.MessageId != nil && n.MessageId != nil && *existing.MessageId == *n.MessageId {
			return nil
		}
	}
	f.created = append(f.created, n)
	return nil
}

func (f *fakeSink) byUser() map[string]*entity.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*entity.Notification, len(f.created))
	for _, n := range f.created {
		out[n.UserId] = n
	}
	return out
}

func testDispatchConfig() *config.DispatchConfig {
	return &config.DispatchConfig{
		PollInterval: time.Second,
		BatchSize:    64,
		MaxAttempts:  3,
		RetryBackoff: 30 * time.Second,
		WorkerNum:    4,
	}
}

func committedEvent(t *testing.T, id int64, evt *MessageCommittedEvent) *entity.OutboxEvent {
	t.Helper()
	payload, err := evt.Encode()
	require.NoError(t, err)
	return &entity.OutboxEvent{Id: id, Kind: constant.OutboxKindMessageCommitted, Payload: payload}
}

func groupParticipants(convId string, userIds ...string) *fakeParticipants {
	parts := make([]*entity.ConversationParticipant, 0, len(userIds))
	for _, u := range userIds {
		parts = append(parts, &entity.ConversationParticipant{ConversationId: convId, UserId: u, IsActive: true})
	}
	return &fakeParticipants{byConv: map[string][]*entity.ConversationParticipant{convId: parts}}
}

func TestDispatcher_FanOutExcludesSender(t *testing.T) {
	outbox := newFakeOutbox(committedEvent(t, 1, &MessageCommittedEvent{
		ConversationId:   "c1",
		ConversationName: "Line 3",
		IsGroup:          true,
		MessageId:        "m1",
		SenderId:         "alice",
		Seq:              1,
		Preview:          "shift change at 6",
	}))
	receipts := &fakeReceipts{seen: map[string]bool{}}
	sink := &fakeSink{}

	d := NewDispatcher(outbox, groupParticipants("c1", "alice", "bob", "carol"), receipts, sink, testDispatchConfig())
	require.NoError(t, d.ProcessBatch(context.Background()))

	byUser := sink.byUser()
	require.Len(t, byUser, 2)
	assert.NotContains(t, byUser, "alice")

	for _, userId := range []string{"bob", "carol"} {
		n := byUser[userId]
		require.NotNil(t, n)
		assert.Equal(t, constant.NotifyTypeNewMessage, n.Type)
		assert.Equal(t, "New message in Line 3", n.Title)
		assert.Equal(t, "shift change at 6", n.Content)
		require.NotNil(t, n.MessageId)
		assert.Equal(t, "m1", *n.MessageId)
	}

	assert.Equal(t, []int64{1}, outbox.done)

	sort.Strings(receipts.invalidated)
	assert.Equal(t, []string{"bob", "carol"}, receipts.invalidated)
}

func TestDispatcher_DirectMessageTitle(t *testing.T) {
	outbox := newFakeOutbox(committedEvent(t, 1, &MessageCommittedEvent{
		ConversationId: "c1",
		MessageId:      "m1",
		SenderId:       "alice",
		Seq:            1,
		Preview:        "hi",
	}))
	sink := &fakeSink{}

	d := NewDispatcher(outbox, groupParticipants("c1", "alice", "bob"), &fakeReceipts{seen: map[string]bool{}}, sink, testDispatchConfig())
	require.NoError(t, d.ProcessBatch(context.Background()))

	n := sink.byUser()["bob"]
	require.NotNil(t, n)
	assert.Equal(t, "New message from alice", n.Title)
}

func TestDispatcher_MentionGetsMentionType(t *testing.T) {
	outbox := newFakeOutbox(committedEvent(t, 1, &MessageCommittedEvent{
		ConversationId:   "c1",
		ConversationName: "Line 3",
		IsGroup:          true,
		MessageId:        "m1",
		SenderId:         "alice",
		Seq:              1,
		Preview:          "@bob check station 4",
		Mentions:         []string{"bob"},
	}))
	sink := &fakeSink{}

	d := NewDispatcher(outbox, groupParticipants("c1", "alice", "bob", "carol"), &fakeReceipts{seen: map[string]bool{}}, sink, testDispatchConfig())
	require.NoError(t, d.ProcessBatch(context.Background()))

	byUser := sink.byUser()
	require.NotNil(t, byUser["bob"])
	assert.Equal(t, constant.NotifyTypeMention, byUser["bob"].Type)
	assert.Equal(t, "alice mentioned you", byUser["bob"].Title)

	require.NotNil(t, byUser["carol"])
	assert.Equal(t, constant.NotifyTypeNewMessage, byUser["carol"].Type)
}

func TestDispatcher_SkipsRecipientWhoAlreadyRead(t *testing.T) {
	outbox := newFakeOutbox(committedEvent(t, 1, &MessageCommittedEvent{
		ConversationId: "c1",
		MessageId:      "m1",
		SenderId:       "alice",
		Seq:            1,
	}))
	receipts := &fakeReceipts{seen: map[string]bool{"m1:bob": true}}
	sink := &fakeSink{}

	d := NewDispatcher(outbox, groupParticipants("c1", "alice", "bob", "carol"), receipts, sink, testDispatchConfig())
	require.NoError(t, d.ProcessBatch(context.Background()))

	byUser := sink.byUser()
	assert.NotContains(t, byUser, "bob")
	assert.Contains(t, byUser, "carol")
	assert.Equal(t, []int64{1}, outbox.done)
}

func TestDispatcher_RedeliveryIsDeduplicated(t *testing.T) {
	evt := committedEvent(t, 1, &MessageCommittedEvent{
		ConversationId: "c1",
		MessageId:      "m1",
		SenderId:       "alice",
		Seq:            1,
	})
	outbox := newFakeOutbox(evt)
	sink := &fakeSink{}

	d := NewDispatcher(outbox, groupParticipants("c1", "alice", "bob"), &fakeReceipts{seen: map[string]bool{}}, sink, testDispatchConfig())
	require.NoError(t, d.ProcessBatch(context.Background()))

	// Replay the same event as a retry would
	evt.Status = constant.OutboxStatusPending
	require.NoError(t, d.ProcessBatch(context.Background()))

	assert.Len(t, sink.created, 1)
}

func TestDispatcher_MalformedPayloadIsParked(t *testing.T) {
	outbox := newFakeOutbox(&entity.OutboxEvent{
		Id:      1,
		Kind:    constant.OutboxKindMessageCommitted,
		Payload: "{not json",
	})
	sink := &fakeSink{}

	d := NewDispatcher(outbox, groupParticipants("c1", "alice"), &fakeReceipts{seen: map[string]bool{}}, sink, testDispatchConfig())
	require.NoError(t, d.ProcessBatch(context.Background()))

	assert.Contains(t, outbox.failed, int64(1))
	assert.Empty(t, outbox.rescheduled)
	assert.Empty(t, sink.created)
}

func TestDispatcher_UnknownKindIsParked(t *testing.T) {
	outbox := newFakeOutbox(&entity.OutboxEvent{Id: 1, Kind: "message.unknown", Payload: "{}"})

	d := NewDispatcher(outbox, groupParticipants("c1", "alice"), &fakeReceipts{seen: map[string]bool{}}, &fakeSink{}, testDispatchConfig())
	require.NoError(t, d.ProcessBatch(context.Background()))

	assert.Contains(t, outbox.failed, int64(1))
}

func TestDispatcher_TransientFailureIsRescheduled(t *testing.T) {
	outbox := newFakeOutbox(committedEvent(t, 1, &MessageCommittedEvent{
		ConversationId: "c1",
		MessageId:      "m1",
		SenderId:       "alice",
		Seq:            1,
	}))
	sink := &fakeSink{err: errors.New("db unavailable")}

	d := NewDispatcher(outbox, groupParticipants("c1", "alice", "bob"), &fakeReceipts{seen: map[string]bool{}}, sink, testDispatchConfig())

	before := entity.NowUnixMilli()
	require.NoError(t, d.ProcessBatch(context.Background()))

	assert.Equal(t, int32(1), outbox.rescheduled[1])
	assert.GreaterOrEqual(t, outbox.nextAt[1], before+(30*time.Second).Milliseconds())
	assert.Empty(t, outbox.done)
	assert.Empty(t, outbox.failed)
}

func TestDispatcher_ExhaustedRetriesAreParked(t *testing.T) {
	evt := committedEvent(t, 1, &MessageCommittedEvent{
		ConversationId: "c1",
		MessageId:      "m1",
		SenderId:       "alice",
		Seq:            1,
	})
	evt.Attempts = 2 // next failure reaches MaxAttempts=3
	outbox := newFakeOutbox(evt)
	sink := &fakeSink{err: errors.New("db unavailable")}

	d := NewDispatcher(outbox, groupParticipants("c1", "alice", "bob"), &fakeReceipts{seen: map[string]bool{}}, sink, testDispatchConfig())
	require.NoError(t, d.ProcessBatch(context.Background()))

	assert.Contains(t, outbox.failed, int64(1))
	assert.Empty(t, outbox.rescheduled)
}

func TestDispatcher_RemovedParticipantGetsNothing(t *testing.T) {
	parts := &fakeParticipants{byConv: map[string][]*entity.ConversationParticipant{
		"c1": {
			{ConversationId: "c1", UserId: "alice", IsActive: true},
			{ConversationId: "c1", UserId: "bob", IsActive: false},
			{ConversationId: "c1", UserId: "carol", IsActive: true},
		},
	}}
	outbox := newFakeOutbox(committedEvent(t, 1, &MessageCommittedEvent{
		ConversationId: "c1",
		MessageId:      "m1",
		SenderId:       "alice",
		Seq:            1,
	}))
	sink := &fakeSink{}

	d := NewDispatcher(outbox, parts, &fakeReceipts{seen: map[string]bool{}}, sink, testDispatchConfig())
	require.NoError(t, d.ProcessBatch(context.Background()))

	byUser := sink.byUser()
	assert.NotContains(t, byUser, "bob")
	assert.Contains(t, byUser, "carol")
}
