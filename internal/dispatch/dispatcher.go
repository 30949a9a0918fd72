package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/mbeoliero/kit/log"
	"github.com/plantline/convo/internal/config"
	"github.com/plantline/convo/internal/entity"
	"github.com/plantline/convo/pkg/constant"
	"github.com/plantline/convo/pkg/idgen"
	"golang.org/x/sync/errgroup"
)

// OutboxSource feeds the dispatcher pending events
type OutboxSource interface {
	ClaimDue(ctx context.Context, now int64, limit int) ([]*entity.OutboxEvent, error)
	MarkDone(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, attempts int32, nextAttemptAt int64, lastError string) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
}

// ParticipantSource resolves the recipients of a conversation event
type ParticipantSource interface {
	ListActive(ctx context.Context, conversationId string) ([]*entity.ConversationParticipant, error)
}

// ReceiptSource lets the dispatcher skip recipients who already read the
// message and drop their stale unread caches after fan-out
type ReceiptSource interface {
	Has(ctx context.Context, messageId, userId string) (bool, error)
	InvalidateUnread(ctx context.Context, conversationId string, userIds ...string)
}

// NotificationSink persists fan-out results; Create must deduplicate on
// (user_id, message_id, type) so retries are harmless
type NotificationSink interface {
	Create(ctx context.Context, n *entity.Notification) error
}

// Dispatcher drains the outbox and fans message-committed events out into
// per-recipient notification rows. It runs independently of the request
// path: a send is durable before the dispatcher ever sees it, and a
// dispatcher failure only delays notifications.
type Dispatcher struct {
	outbox        OutboxSource
	participants  ParticipantSource
	receipts      ReceiptSource
	notifications NotificationSink
	cfg           *config.DispatchConfig

	scheduler gocron.Scheduler
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(outbox OutboxSource, participants ParticipantSource, receipts ReceiptSource, notifications NotificationSink, cfg *config.DispatchConfig) *Dispatcher {
	return &Dispatcher{
		outbox:        outbox,
		participants:  participants,
		receipts:      receipts,
		notifications: notifications,
		cfg:           cfg,
	}
}

// Start begins polling the outbox on the configured interval
func (d *Dispatcher) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(d.cfg.PollInterval),
		gocron.NewTask(func() {
			if err := d.ProcessBatch(ctx); err != nil {
				log.CtxError(ctx, "outbox batch failed: %v", err)
			}
		}),
		gocron.WithName("outbox-dispatch"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule outbox job: %w", err)
	}

	s.Start()
	d.scheduler = s
	log.CtxInfo(ctx, "dispatcher started: interval=%s, batch=%d", d.cfg.PollInterval, d.cfg.BatchSize)
	return nil
}

// Stop shuts the poll loop down
func (d *Dispatcher) Stop() error {
	if d.scheduler == nil {
		return nil
	}
	return d.scheduler.Shutdown()
}

// ProcessBatch drains one batch of due events
func (d *Dispatcher) ProcessBatch(ctx context.Context) error {
	events, err := d.outbox.ClaimDue(ctx, entity.NowUnixMilli(), d.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, evt := range events {
		if err := d.handleEvent(ctx, evt); err != nil {
			d.recordFailure(ctx, evt, err)
			continue
		}
		if err := d.outbox.MarkDone(ctx, evt.Id); err != nil {
			log.CtxError(ctx, "mark outbox done failed: id=%d, error=%v", evt.Id, err)
		}
	}
	return nil
}

func (d *Dispatcher) handleEvent(ctx context.Context, evt *entity.OutboxEvent) error {
	switch evt.Kind {
	case constant.OutboxKindMessageCommitted:
		msg, err := DecodeMessageCommitted(evt.Payload)
		if err != nil {
			// A payload that does not decode will never decode; park it.
			return &permanentError{err}
		}
		return d.fanOut(ctx, msg)
	default:
		return &permanentError{fmt.Errorf("unknown outbox kind %q", evt.Kind)}
	}
}

// fanOut creates one notification per active participant except the sender.
// Per-recipient failures are retried on the next poll; dedup makes the
// retry re-deliver only the missing rows.
func (d *Dispatcher) fanOut(ctx context.Context, msg *MessageCommittedEvent) error {
	participants, err := d.participants.ListActive(ctx, msg.ConversationId)
	if err != nil {
		return err
	}

	mentioned := make(map[string]bool, len(msg.Mentions))
	for _, userId := range msg.Mentions {
		mentioned[userId] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.WorkerNum)

	recipients := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.UserId == msg.SenderId {
			continue
		}
		recipients = append(recipients, p.UserId)

		userId := p.UserId
		g.Go(func() error {
			return d.notifyRecipient(gctx, msg, userId, mentioned[userId])
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	d.receipts.InvalidateUnread(ctx, msg.ConversationId, recipients...)
	return nil
}

func (d *Dispatcher) notifyRecipient(ctx context.Context, msg *MessageCommittedEvent, userId string, isMention bool) error {
	// Defensive no-op: a recipient who already acknowledged the message
	// (e.g. via another device between commit and dispatch) gets nothing.
	seen, err := d.receipts.Has(ctx, msg.MessageId, userId)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	notifyType := constant.NotifyTypeNewMessage
	title := "New message from " + msg.SenderId
	if msg.IsGroup && msg.ConversationName != "" {
		title = "New message in " + msg.ConversationName
	}
	if isMention {
		notifyType = constant.NotifyTypeMention
		title = msg.SenderId + " mentioned you"
	}

	id, err := idgen.NextID()
	if err != nil {
		return err
	}

	n := &entity.Notification{
		Id:        id,
		UserId:    userId,
		Type:      notifyType,
		Title:     title,
		Content:   msg.Preview,
		MessageId: &msg.MessageId,
	}
	if err := n.SetData(&MessageRef{ConversationId: msg.ConversationId, MessageId: msg.MessageId}); err != nil {
		return err
	}

	return d.notifications.Create(ctx, n)
}

func (d *Dispatcher) recordFailure(ctx context.Context, evt *entity.OutboxEvent, cause error) {
	attempts := evt.Attempts + 1

	if _, permanent := cause.(*permanentError); permanent || int(attempts) >= d.cfg.MaxAttempts {
		log.CtxError(ctx, "outbox event parked: id=%d, attempts=%d, error=%v", evt.Id, attempts, cause)
		if err := d.outbox.MarkFailed(ctx, evt.Id, cause.Error()); err != nil {
			log.CtxError(ctx, "mark outbox failed errored: id=%d, error=%v", evt.Id, err)
		}
		return
	}

	nextAt := entity.NowUnixMilli() + (d.cfg.RetryBackoff * time.Duration(attempts)).Milliseconds()
	log.CtxWarn(ctx, "outbox event retry scheduled: id=%d, attempts=%d, error=%v", evt.Id, attempts, cause)
	if err := d.outbox.Reschedule(ctx, evt.Id, attempts, nextAt, cause.Error()); err != nil {
		log.CtxError(ctx, "reschedule outbox failed: id=%d, error=%v", evt.Id, err)
	}
}

// permanentError marks failures that no retry can fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
