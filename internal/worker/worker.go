// Package worker provides async audit persistence off the request path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/opensource-finance/osprey/internal/domain"
)

// Worker subscribes to assessment events and persists the audit trail,
// keeping repository writes off the screening request path.
type Worker struct {
	bus  domain.EventBus
	repo domain.Repository

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates an audit worker.
func NewWorker(bus domain.EventBus, repo domain.Repository) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the assessed-charge topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicChargeAssessed, w.handleAssessed)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("audit worker started", "topic", domain.TopicChargeAssessed)
	return nil
}

// handleAssessed persists the charge and assessment from one event.
func (w *Worker) handleAssessed(ctx context.Context, msg *domain.Message) error {
	var event domain.ChargeAssessedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to unmarshal assessment event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if event.Charge == nil || event.Assessment == nil {
		slog.Warn("assessment event missing charge or assessment", "message_id", msg.ID)
		return nil
	}

	if err := w.repo.SaveCharge(ctx, event.Charge); err != nil {
		slog.Error("failed to persist charge",
			"charge_id", event.Charge.ID,
			"error", err,
		)
	}

	if err := w.repo.SaveAssessment(ctx, event.Assessment); err != nil {
		slog.Error("failed to persist assessment",
			"assessment_id", event.Assessment.ID,
			"error", err,
		)
		return err
	}

	return nil
}

// Stop unsubscribes and stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	w.subscriptions = nil

	slog.Info("audit worker stopped")
	return nil
}
