package activity

import (
	"context"
	"strings"
)

// DefaultChannel is stamped on events that do not name one.
const DefaultChannel = "snapshot"

// Config controls emission defaults.
type Config struct {
	Enabled bool
	Channel string
	// ActorID and TenantID are stamped on events that leave them empty, for
	// hosts that run one store per user or tenant.
	ActorID  string
	TenantID string
}

// Emitter fans events out to hooks after applying the configured defaults.
type Emitter struct {
	hooks Hooks
	cfg   Config
}

// NewEmitter constructs an emitter. It is disabled when no hook survives
// nil filtering.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	cfg.Channel = strings.TrimSpace(cfg.Channel)
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	hooks = Compact(hooks)
	cfg.Enabled = cfg.Enabled && len(hooks) > 0
	return &Emitter{hooks: hooks, cfg: cfg}
}

// Enabled reports whether emissions will be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.cfg.Enabled
}

// Hooks returns a copy of the hooks the emitter notifies.
func (e *Emitter) Hooks() Hooks {
	if e == nil {
		return nil
	}
	return Compact(e.hooks)
}

// Emit applies defaults and forwards event to every hook.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.cfg.Channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.cfg.ActorID
	}
	if strings.TrimSpace(event.TenantID) == "" {
		event.TenantID = e.cfg.TenantID
	}
	return e.hooks.Notify(ctx, event)
}

// Compact copies hooks without nil entries. It returns nil when nothing is
// left.
func Compact(hooks Hooks) Hooks {
	var out Hooks
	for _, hook := range hooks {
		if hook != nil {
			out = append(out, hook)
		}
	}
	return out
}
