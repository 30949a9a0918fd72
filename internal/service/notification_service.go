package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/plantline/convo/internal/dispatch"
	"github.com/plantline/convo/internal/entity"
	"github.com/plantline/convo/pkg/constant"
	"github.com/plantline/convo/pkg/errcode"
	"github.com/plantline/convo/pkg/idgen"
)

// NotificationService reads the notification inbox and is the direct
// ingress for non-message-driven notifications raised by external
// subsystems (worker performance alerts, system announcements).
// Message-driven fan-out goes through the outbox dispatcher instead.
type NotificationService struct {
	notifications NotificationStore
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(notifications NotificationStore) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// List returns a page of the user's notifications, newest first
func (s *NotificationService) List(ctx context.Context, userId string, unreadOnly bool, beforeId string, limit int) ([]*entity.Notification, error) {
	notifications, err := s.notifications.List(ctx, userId, unreadOnly, beforeId, limit)
	if err != nil {
		log.CtxError(ctx, "list notifications failed: user=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	return notifications, nil
}

// MarkRead flips is_read on a notification owned by the caller
func (s *NotificationService) MarkRead(ctx context.Context, notificationId, userId string) error {
	n, err := s.notifications.GetById(ctx, notificationId)
	if err != nil {
		log.CtxError(ctx, "get notification failed: id=%s, error=%v", notificationId, err)
		return errcode.ErrInternalServer
	}
	if n == nil {
		return errcode.ErrNotificationNotFound
	}
	if n.UserId != userId {
		return errcode.ErrForbidden
	}
	if n.IsRead {
		return nil
	}

	if err := s.notifications.MarkRead(ctx, notificationId, entity.NowUnixMilli()); err != nil {
		log.CtxError(ctx, "mark notification read failed: id=%s, error=%v", notificationId, err)
		return errcode.ErrInternalServer
	}
	return nil
}

// EmitSystemAlert creates a SYSTEM notification for a single recipient
func (s *NotificationService) EmitSystemAlert(ctx context.Context, userId, title, content string, payload *dispatch.SystemAlertPayload) (*entity.Notification, error) {
	return s.emit(ctx, userId, constant.NotifyTypeSystem, title, content, payload)
}

// EmitPerformanceAlert creates a PERFORMANCE_ALERT notification. This is
// the declared interface the workforce/performance subsystems call.
func (s *NotificationService) EmitPerformanceAlert(ctx context.Context, userId, title, content string, payload *dispatch.PerformanceAlertPayload) (*entity.Notification, error) {
	return s.emit(ctx, userId, constant.NotifyTypePerformanceAlert, title, content, payload)
}

func (s *NotificationService) emit(ctx context.Context, userId, notifyType, title, content string, payload interface{}) (*entity.Notification, error) {
	if userId == "" || title == "" {
		return nil, errcode.ErrInvalidParam
	}
	if err := dispatch.ValidatePayload(payload); err != nil {
		log.CtxWarn(ctx, "alert payload rejected: type=%s, error=%v", notifyType, err)
		return nil, errcode.ErrPayloadInvalid.Wrap(err)
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate notification id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	n := &entity.Notification{
		Id:      id,
		UserId:  userId,
		Type:    notifyType,
		Title:   title,
		Content: content,
	}
	if err := n.SetData(payload); err != nil {
		return nil, errcode.ErrPayloadInvalid.Wrap(err)
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		log.CtxError(ctx, "create notification failed: user=%s, type=%s, error=%v", userId, notifyType, err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "alert emitted: user=%s, type=%s", userId, notifyType)
	return n, nil
}
