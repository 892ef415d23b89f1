package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"

	"github.com/ccrouter/ccr/engine/validate"
)

// Service merges a set of Provider layers into one Config and validates the
// result. It is the one implementation Manager drives; tests substitute a
// fake to exercise Manager in isolation.
type Service interface {
	Load(ctx context.Context, providers ...Provider) (*Config, error)
	Watch(ctx context.Context, callback func(*Config)) error
	Validate(cfg *Config) error
	GetSource(key string) SourceType
}

type service struct {
	mu       sync.Mutex
	validate *validator.Validate
}

// NewService returns the default koanf-backed Service.
func NewService() Service {
	v := validator.New()
	_ = v.RegisterValidation("modelstring", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || validate.IsValidModelString(s)
	})
	return &service{validate: v}
}

// Load seeds a shared koanf instance with the built-in defaults, then
// applies each provider's Load() result on top in the order given, later
// providers winning key-by-key, then unmarshals and validates the merged
// result. Defaults apply even when no providers are given, so callers
// never see a zero-value Config.
func (s *service) Load(_ context.Context, providers ...Provider) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(mapProvider(structToMap(Default())), nil); err != nil {
		return nil, fmt.Errorf("failed to load built-in defaults: %w", err)
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		data, err := p.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load from source %q: %w", p.Type(), err)
		}
		if err := k.Load(mapProvider(data), nil); err != nil {
			return nil, fmt.Errorf("failed to merge source %q: %w", p.Type(), err)
		}
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := s.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch accepts a reload callback; the actual file-change detection lives
// in each Provider's own Watch, wired up by Manager.
func (s *service) Watch(_ context.Context, callback func(*Config)) error {
	if callback == nil {
		return errors.New("callback cannot be nil")
	}
	return nil
}

func (s *service) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration cannot be nil")
	}
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// GetSource always returns SourceDefault: once merged, koanf no longer
// tracks which layer a key came from.
func (s *service) GetSource(_ string) SourceType {
	return SourceDefault
}

// mapProvider adapts a plain map[string]any to koanf's own Provider
// interface, letting each config.Provider's already-loaded map feed
// straight into koanf.Load without a confmap dependency the examples pack
// never pulled in.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("mapProvider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return map[string]any(m), nil
}
