package webhook

import (
	"context"

	"go.uber.org/zap"

	"github.com/wxgate/weather-gateway/internal/model"
	"github.com/wxgate/weather-gateway/internal/repository"
)

// Notifier turns claimed trigger events into callback deliveries and folds
// the outcome back into subscription state.
type Notifier struct {
	subs          repository.SubscriptionsRepository
	deliverer     *Deliverer
	failThreshold int
	logger        *zap.Logger
}

func NewNotifier(subs repository.SubscriptionsRepository, deliverer *Deliverer, failThreshold int, logger *zap.Logger) *Notifier {
	if failThreshold <= 0 {
		failThreshold = 5
	}
	return &Notifier{subs: subs, deliverer: deliverer, failThreshold: failThreshold, logger: logger}
}

// HandleTrigger delivers one trigger event. Delivery success resets the
// consecutive-failure count; exhausted retries increment it and suspend the
// subscription at the threshold. Errors are absorbed so one bad subscriber
// cannot stall the consumer loop.
func (n *Notifier) HandleTrigger(ctx context.Context, ev model.TriggerEvent) {
	if err := n.deliverer.Deliver(ctx, ev); err != nil {
		count, rerr := n.subs.RecordFailure(ctx, ev.SubscriptionID, n.failThreshold)
		if rerr != nil {
			n.logger.Error("record delivery failure",
				zap.String("subscription_id", ev.SubscriptionID), zap.Error(rerr))
			return
		}
		if count >= n.failThreshold {
			n.logger.Warn("subscription suspended after consecutive failures",
				zap.String("subscription_id", ev.SubscriptionID),
				zap.Int("failures", count))
		} else {
			n.logger.Warn("webhook delivery failed",
				zap.String("subscription_id", ev.SubscriptionID),
				zap.Int("failures", count),
				zap.Error(err))
		}
		return
	}

	if err := n.subs.MarkDelivered(ctx, ev.SubscriptionID); err != nil {
		n.logger.Error("mark delivered",
			zap.String("subscription_id", ev.SubscriptionID), zap.Error(err))
	}
}
