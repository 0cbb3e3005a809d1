package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/osprey/internal/bus"
	"github.com/opensource-finance/osprey/internal/domain"
)

// memoryRepo is an in-memory Repository for worker tests.
type memoryRepo struct {
	mu          sync.Mutex
	charges     map[string]*domain.Charge
	assessments map[string]*domain.Assessment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		charges:     make(map[string]*domain.Charge),
		assessments: make(map[string]*domain.Assessment),
	}
}

func (r *memoryRepo) SaveCharge(ctx context.Context, c *domain.Charge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.charges[c.ID] = c
	return nil
}

func (r *memoryRepo) GetCharge(ctx context.Context, id string) (*domain.Charge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.charges[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) SaveAssessment(ctx context.Context, a *domain.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessments[a.ID] = a
	return nil
}

func (r *memoryRepo) GetAssessment(ctx context.Context, id string) (*domain.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assessments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (r *memoryRepo) ListAssessmentsByCharge(ctx context.Context, chargeID string) ([]*domain.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Assessment
	for _, a := range r.assessments {
		if a.ChargeID == chargeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) Ping(ctx context.Context) error { return nil }
func (r *memoryRepo) Close() error                   { return nil }

func TestWorkerPersistsAssessedCharges(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo := newMemoryRepo()

	w := NewWorker(eventBus, repo)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	event := domain.ChargeAssessedEvent{
		Charge: &domain.Charge{
			ID: "ch-worker-1", Amount: 500, Currency: "USD",
			Source: "tok_1", Email: "a@b.com", CreatedAt: time.Now().UTC(),
		},
		Assessment: &domain.Assessment{
			ID: "as-worker-1", ChargeID: "ch-worker-1",
			Result: domain.RiskAssessment{
				RiskScore: 0.3, RiskPercentage: 30,
				TriggeredRules: []string{"large-amount"},
			},
			Decision:  domain.DecisionApproved,
			Timestamp: time.Now().UTC(),
		},
	}
	payload, _ := json.Marshal(event)

	ctx := context.Background()
	if err := eventBus.Publish(ctx, domain.TopicChargeAssessed, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// Async handling; poll until persisted
	deadline := time.After(time.Second)
	for {
		if _, err := repo.GetAssessment(ctx, "as-worker-1"); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timeout waiting for worker to persist assessment")
		case <-time.After(10 * time.Millisecond):
		}
	}

	charge, err := repo.GetCharge(ctx, "ch-worker-1")
	if err != nil {
		t.Fatalf("charge not persisted: %v", err)
	}
	if charge.Amount != 500 {
		t.Errorf("expected amount 500, got %v", charge.Amount)
	}
}

func TestWorkerIgnoresMalformedEvents(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo := newMemoryRepo()

	w := NewWorker(eventBus, repo)
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	ctx := context.Background()
	if err := eventBus.Publish(ctx, domain.TopicChargeAssessed, []byte("not json")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	// Event with no charge or assessment is skipped, not fatal
	if err := eventBus.Publish(ctx, domain.TopicChargeAssessed, []byte("{}")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.charges) != 0 || len(repo.assessments) != 0 {
		t.Error("malformed events must not persist anything")
	}
}

func TestWorkerStop(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	w := NewWorker(eventBus, newMemoryRepo())
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
}
