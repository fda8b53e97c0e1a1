package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vendio-backend/pkg/db/models"
	"github.com/angelmondragon/vendio-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
	"github.com/angelmondragon/vendio-backend/pkg/logger"
)

type userWriter interface {
	SetSubscription(ctx context.Context, userID uuid.UUID, planID uuid.UUID, feeBps int64, periodEnd time.Time) error
	ClearSubscription(ctx context.Context, userID uuid.UUID) error
}

// SyncParams mirrors the provider subscription state pushed by a webhook.
type SyncParams struct {
	UserID                 uuid.UUID
	ProviderSubscriptionID string
	Status                 enums.SubscriptionStatus
	PlanName               string
	PriceID                string
	StartedAt              time.Time
	CurrentPeriodEnd       *time.Time
	Deleted                bool
}

// Service keeps seller fee tiers in step with provider subscription state.
type Service interface {
	Sync(ctx context.Context, params SyncParams) error
}

type service struct {
	repo  Repository
	users userWriter
	logg  *logger.Logger
}

func NewService(repo Repository, users userWriter, logg *logger.Logger) (Service, error) {
	if repo == nil || users == nil || logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscriptions dependencies required")
	}
	return &service{repo: repo, users: users, logg: logg}, nil
}

// Sync upserts the subscription row and mirrors the fee tier onto the seller.
// A deleted or non-billable subscription clears the seller's tier fields.
func (s *service) Sync(ctx context.Context, params SyncParams) error {
	if params.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.ProviderSubscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider subscription id required")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":         params.UserID.String(),
		"subscription_id": params.ProviderSubscriptionID,
		"status":          params.Status.String(),
	})

	active := !params.Deleted && params.Status.IsActive()

	plan, err := s.resolvePlan(ctx, params)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve subscription plan")
	}
	if active && plan == nil {
		s.logg.Warn(logCtx, "subscription references unknown plan, fee tier unchanged")
	}

	row := &models.Subscription{
		UserID:                 params.UserID,
		ProviderSubscriptionID: params.ProviderSubscriptionID,
		Status:                 params.Status,
		StartedAt:              params.StartedAt,
		CurrentPeriodEnd:       params.CurrentPeriodEnd,
	}
	if params.Deleted {
		row.Status = enums.SubscriptionStatusCanceled
	}
	if plan != nil {
		planID := plan.ID
		row.PlanID = &planID
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert subscription")
	}

	if active && plan != nil {
		periodEnd := params.StartedAt.AddDate(0, 1, 0)
		if params.CurrentPeriodEnd != nil {
			periodEnd = *params.CurrentPeriodEnd
		}
		if err := s.users.SetSubscription(ctx, params.UserID, plan.ID, plan.FeeBps, periodEnd); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply fee tier")
		}
		s.logg.Info(logCtx, "seller fee tier applied")
		return nil
	}

	if err := s.users.ClearSubscription(ctx, params.UserID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear fee tier")
	}
	s.logg.Info(logCtx, "seller fee tier cleared")
	return nil
}

// resolvePlan matches the provider plan by display name first, then by
// lowercased price id.
func (s *service) resolvePlan(ctx context.Context, params SyncParams) (*models.SubscriptionPlan, error) {
	if params.PlanName != "" {
		plan, err := s.repo.FindPlanByName(ctx, params.PlanName)
		if err != nil || plan != nil {
			return plan, err
		}
	}
	if params.PriceID != "" {
		return s.repo.FindPlanByPriceID(ctx, params.PriceID)
	}
	return nil, nil
}
