// Package snapshot converts live graphs of configurable objects into a
// reversible statement form and rebuilds equivalent graphs from it.
package snapshot

import (
	"context"
	"time"

	"github.com/goliatone/go-snapshot/internal/hydrate"
	"github.com/goliatone/go-snapshot/pkg/activity"
)

// Service holds the state shared by every session: type resolution, member
// metadata, serializer providers and the component output cache.
type Service struct {
	cfg        config
	decoder    *hydrate.Decoder
	evaluators evaluatorSet
	emitter    *activity.Emitter
}

// New constructs a Service.
func New(opts ...Option) *Service {
	cfg := applyOptions(opts)
	emitterCfg := cfg.activity
	emitterCfg.Enabled = true
	return &Service{
		cfg:     cfg,
		decoder: hydrate.NewDecoder(),
		emitter: activity.NewEmitter(cfg.hooks, emitterCfg),
	}
}

// Types returns the type-resolution service.
func (s *Service) Types() *TypeRegistry {
	return s.cfg.types
}

// Describer returns the member metadata service.
func (s *Service) Describer() Describer {
	return s.cfg.describer
}

// ComponentCache returns the configured output cache, or nil.
func (s *Service) ComponentCache() *ComponentCache {
	return s.cfg.components
}

// Logger returns the configured logger.
func (s *Service) Logger() Logger {
	return s.cfg.logger
}

// ActivityHooks returns a copy of the configured lifecycle hooks.
func (s *Service) ActivityHooks() activity.Hooks {
	return s.emitter.Hooks()
}

// emit never fails the operation that raised the event; hook errors are
// only logged.
func (s *Service) emit(ctx context.Context, event activity.Event) {
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.cfg.logger.Log(LogEvent{Op: "activity", Name: event.Verb, Err: err})
	}
}

func (s *Service) log(op, name string, start time.Time, err error) {
	s.cfg.logger.Log(LogEvent{Op: op, Name: name, Duration: time.Since(start), Err: err})
}
