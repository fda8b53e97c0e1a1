package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/logger"
)

// Transport delivers a notification over one external channel.
type Transport interface {
	Channel() enums.NotificationChannel
	Deliver(ctx context.Context, userID uuid.UUID, title, message string) error
}

// SendParams describes one notification fan-out.
type SendParams struct {
	UserID         uuid.UUID
	Title          string
	Message        string
	Channels       []enums.NotificationChannel
	SaveToDatabase bool
}

// Service fans notifications out to their channels. Delivery is best-effort:
// a failing transport is logged and never fails the caller.
type Service interface {
	Send(ctx context.Context, params SendParams) error
}

type service struct {
	repo       Repository
	logg       *logger.Logger
	transports map[enums.NotificationChannel]Transport
}

// NewService wires notification dependencies. Transports are optional; a
// channel without one only records the in-app row.
func NewService(repo Repository, logg *logger.Logger, transports ...Transport) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	byChannel := make(map[enums.NotificationChannel]Transport, len(transports))
	for _, t := range transports {
		byChannel[t.Channel()] = t
	}
	return &service{repo: repo, logg: logg, transports: byChannel}, nil
}

func (s *service) Send(ctx context.Context, params SendParams) error {
	if params.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification title required")
	}

	if params.SaveToDatabase {
		row := &models.Notification{
			UserID:  params.UserID,
			Title:   params.Title,
			Message: params.Message,
			Channels: pq.StringArray(lo.Map(params.Channels,
				func(c enums.NotificationChannel, _ int) string { return c.String() })),
		}
		if err := s.repo.Create(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save notification")
		}
	}

	var errs []error
	for _, channel := range params.Channels {
		transport, ok := s.transports[channel]
		if !ok {
			continue
		}
		if err := transport.Deliver(ctx, params.UserID, params.Title, params.Message); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", channel, err))
		}
	}
	if combined := multierr.Combine(errs...); combined != nil {
		logCtx := s.logg.WithField(ctx, "user_id", params.UserID.String())
		s.logg.Error(logCtx, "notification delivery failed", combined)
	}
	return nil
}
