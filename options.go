package snapshot

import (
	"github.com/goliatone/go-snapshot/pkg/activity"
	"github.com/goliatone/go-snapshot/resources"
)

// Option configures a Service.
type Option func(*config)

type config struct {
	types        *TypeRegistry
	describer    Describer
	providers    []SerializerProvider
	culture      resources.Culture
	logger       Logger
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
	hooks        activity.Hooks
	activity     activity.Config
	components   *ComponentCache
	devAsserts   bool
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.types == nil {
		cfg.types = NewTypeRegistry()
	}
	if cfg.describer == nil {
		cfg.describer = NewTagDescriber()
	}
	if cfg.logger == nil {
		cfg.logger = noopLogger{}
	}
	return cfg
}

// WithTypes sets the type-resolution service.
func WithTypes(types *TypeRegistry) Option {
	return func(cfg *config) {
		cfg.types = types
	}
}

// WithDescriber sets the member metadata service.
func WithDescriber(describer Describer) Option {
	return func(cfg *config) {
		cfg.describer = describer
	}
}

// WithSerializerProvider appends a provider to the override chain.
func WithSerializerProvider(provider SerializerProvider) Option {
	return func(cfg *config) {
		if provider != nil {
			cfg.providers = append(cfg.providers, provider)
		}
	}
}

// WithCulture selects the culture resources are written to.
func WithCulture(culture resources.Culture) Option {
	return func(cfg *config) {
		cfg.culture = culture
	}
}

// WithEvaluator configures the evaluator used for snippet expressions.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers a program cache used by the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry exposes registry to snippet expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for snippet expressions.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithActivityHooks attaches lifecycle hooks. Nil hooks are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := activity.Compact(hooks)
	return func(cfg *config) {
		cfg.hooks = normalized
	}
}

// WithActivityConfig sets the channel, actor and tenant stamped on events
// that leave them empty.
func WithActivityConfig(activityCfg activity.Config) Option {
	return func(cfg *config) {
		cfg.activity = activityCfg
	}
}

// WithComponentCache reuses previously generated output across stores.
func WithComponentCache(cache *ComponentCache) Option {
	return func(cfg *config) {
		cfg.components = cache
	}
}

// WithDevelopmentAsserts turns silently skipped contract violations, such as
// non-serializable resource values, into panics.
func WithDevelopmentAsserts(enabled bool) Option {
	return func(cfg *config) {
		cfg.devAsserts = enabled
	}
}

// DeserializeOption configures a single deserialization.
type DeserializeOption func(*deserializeConfig)

type deserializeConfig struct {
	recycleInstances      bool
	validateRecycledTypes bool
	preserveNames         bool
	applyDefaults         bool
	culture               *resources.Culture
}

func applyDeserializeOptions(opts []DeserializeOption) deserializeConfig {
	cfg := deserializeConfig{preserveNames: true, validateRecycledTypes: true, applyDefaults: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithRecycleInstances reuses instances already bound to a name in the
// session or the container instead of constructing new ones.
func WithRecycleInstances(enabled bool) DeserializeOption {
	return func(cfg *deserializeConfig) {
		cfg.recycleInstances = enabled
	}
}

// WithValidateRecycledTypes discards recycled instances whose type differs
// from the declared one.
func WithValidateRecycledTypes(enabled bool) DeserializeOption {
	return func(cfg *deserializeConfig) {
		cfg.validateRecycledTypes = enabled
	}
}

// WithPreserveNames lets name lookups fall through to the container.
func WithPreserveNames(enabled bool) DeserializeOption {
	return func(cfg *deserializeConfig) {
		cfg.preserveNames = enabled
	}
}

// WithApplyDefaults resets members recorded as default in the payload.
func WithApplyDefaults(enabled bool) DeserializeOption {
	return func(cfg *deserializeConfig) {
		cfg.applyDefaults = enabled
	}
}

// WithDeserializeCulture reads resources for culture instead of the culture
// the payload was written in.
func WithDeserializeCulture(culture resources.Culture) DeserializeOption {
	return func(cfg *deserializeConfig) {
		cfg.culture = &culture
	}
}
