package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"deluxe_backend/pkg/billing"
)

// SweepResult counts what a sweep did.
type SweepResult struct {
	Checked int
	Removed int
	Updated int
	Failed  int
}

// Sweeper re-syncs subscriptions left incomplete longer than Stripe keeps
// their first invoice open, in case the expiry webhook never arrived.
type Sweeper struct {
	subscriptions SubscriptionStore
	gateway       billing.Gateway
	syncer        *Syncer
	maxAge        time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

func NewSweeper(subscriptions SubscriptionStore, gateway billing.Gateway, syncer *Syncer, maxAge time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		subscriptions: subscriptions,
		gateway:       gateway,
		syncer:        syncer,
		maxAge:        maxAge,
		now:           time.Now,
		logger:        logger,
	}
}

// Sweep checks every stale incomplete subscription against Stripe. One
// failure does not stop the rest.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	cutoff := s.now().UTC().Add(-s.maxAge)
	stale, err := s.subscriptions.ListStaleIncomplete(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("list stale subscriptions: %w", err)
	}

	for _, sub := range stale {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Checked++

		remote, err := s.gateway.GetSubscription(ctx, sub.StripeSubscriptionID)
		if err != nil {
			result.Failed++
			s.logger.Warn("failed to fetch stale subscription",
				zap.String("subscription_id", sub.StripeSubscriptionID),
				zap.Error(err),
			)
			continue
		}

		stored, err := s.syncer.ApplySubscription(ctx, remote)
		if err != nil {
			result.Failed++
			s.logger.Error("failed to sync stale subscription",
				zap.String("subscription_id", sub.StripeSubscriptionID),
				zap.Error(err),
			)
			continue
		}
		if stored == nil {
			result.Removed++
		} else {
			result.Updated++
		}
	}

	if result.Checked > 0 {
		s.logger.Info("incomplete subscription sweep finished",
			zap.Int("checked", result.Checked),
			zap.Int("removed", result.Removed),
			zap.Int("updated", result.Updated),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}
