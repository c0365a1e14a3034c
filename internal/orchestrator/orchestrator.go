package orchestrator

import (
	"context"
	"log/slog"

	"influnest/internal/metrics"
	"influnest/internal/models"
	"influnest/internal/services"
)

// Orchestrator fans committed lifecycle events out to the registered services
type Orchestrator struct {
	services []services.Service
}

// New creates a new Orchestrator with the given services
func New(services []services.Service) *Orchestrator {
	return &Orchestrator{
		services: services,
	}
}

// Dispatch runs an event through all registered services in order. The
// operation that produced the event is already committed, so service
// failures are logged and counted but never returned.
func (o *Orchestrator) Dispatch(ctx context.Context, event *models.CampaignEvent) {
	// Sinks must finish even if the originating request goes away
	ctx = context.WithoutCancel(ctx)

	slog.Debug("Orchestrator: Dispatching event",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"services_count", len(o.services),
	)

	for _, service := range o.services {
		if err := service.Process(ctx, event); err != nil {
			metrics.ErrorsTotal.WithLabelValues(service.Name()).Inc()
			slog.Error("Service processing failed",
				"service", service.Name(),
				"event_id", event.EventID,
				"event_type", event.EventType,
				"error", err,
			)
		}
	}
}

// Services returns the list of registered services (for inspection/testing)
func (o *Orchestrator) Services() []services.Service {
	return o.services
}
