package notifications

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Service stores in-app notifications and mirrors them by email when the
// tenant has opted in. Mail failures never fail the notification.
type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer) *Service {
	return &Service{store: store, Mailer: mailer, DefaultFrom: "no-reply@example.com"}
}

func (s *Service) Create(ctx context.Context, tenantID, userID, ntype, title, body string) error {
	if err := s.store.CreateNotification(ctx, tenantID, userID, ntype, title, body); err != nil {
		return err
	}
	if s.Mailer != nil {
		s.mail(ctx, tenantID, userID, title, body)
	}
	return nil
}

func (s *Service) mail(ctx context.Context, tenantID, userID, subject, body string) {
	settings, err := s.store.EmailSettings(ctx, tenantID)
	if err != nil {
		slog.Warn("notification email settings lookup failed", "tenantId", tenantID, "err", err)
		return
	}
	if !settings.EmailEnabled {
		return
	}
	from := settings.EmailFrom
	if from == "" {
		from = s.DefaultFrom
	}

	to, err := s.store.UserEmail(ctx, tenantID, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "userId", userID, "err", err)
		return
	}
	if to == "" {
		return
	}
	if err := s.Mailer.Send(ctx, from, to, subject, body); err != nil {
		slog.Warn("notification email send failed", "userId", userID, "err", err)
	}
}

// List returns a page of the user's notifications, newest first, with the
// total matching the same filter.
func (s *Service) List(ctx context.Context, tenantID, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	items, err := s.store.ListNotifications(ctx, tenantID, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountNotifications(ctx, tenantID, userID, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	return s.store.MarkRead(ctx, tenantID, userID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, tenantID, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, tenantID, userID)
}

func (s *Service) Settings(ctx context.Context, tenantID string) (Settings, error) {
	return s.store.EmailSettings(ctx, tenantID)
}

// UpdateSettings stores the sender as a bare address; display names are
// dropped.
func (s *Service) UpdateSettings(ctx context.Context, tenantID string, settings Settings) (Settings, error) {
	settings.EmailFrom = strings.TrimSpace(settings.EmailFrom)
	if settings.EmailFrom != "" {
		addr, err := mail.ParseAddress(settings.EmailFrom)
		if err != nil {
			return Settings{}, ErrInvalidSender
		}
		settings.EmailFrom = addr.Address
	}
	if err := s.store.SaveSettings(ctx, tenantID, settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
