package core

import (
	"context"
	"time"

	"github.com/edvin/agentplane/internal/db"
)

// Store runs units of work bound to a single tenant. *db.TenantStore
// satisfies it.
type Store interface {
	InTenant(ctx context.Context, tenantID string, fn func(q db.Querier) error) error
	ReadInTenant(ctx context.Context, tenantID string, fn func(q db.Querier) error) error
}

// Options carries the optional collaborators of the services. Zero values
// disable the feature: no gate expression, no publication, no hand-off.
type Options struct {
	Gate                *PromotionGate
	InstanceTransitions TransitionPolicy
	Publisher           EventPublisher
	Dispatcher          EvaluationDispatcher
	Now                 func() time.Time
}

type Services struct {
	Template   *TemplateService
	Version    *VersionService
	Lifecycle  *LifecycleService
	Evaluation *EvaluationService
	Policy     *PolicyService
	Instance   *InstanceService
	Event      *EventService
}

func NewServices(store Store, opts Options) *Services {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.InstanceTransitions == "" {
		opts.InstanceTransitions = StrictTransitions
	}

	events := NewEventService(store, opts.Publisher, opts.Now)
	return &Services{
		Template:   NewTemplateService(store, events),
		Version:    NewVersionService(store, events),
		Lifecycle:  NewLifecycleService(store, events, opts.Gate, opts.Dispatcher),
		Evaluation: NewEvaluationService(store, events, opts.Now),
		Policy:     NewPolicyService(store, events),
		Instance:   NewInstanceService(store, events, opts.InstanceTransitions),
		Event:      events,
	}
}
