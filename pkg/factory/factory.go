// Package factory builds self-configuring components: a component pulls its
// own configuration section through a parser callback, then validates itself
// before it is handed to callers.
package factory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
)

// Component is implemented by anything the factory can build.
type Component interface {
	// Init extracts the component's configuration via the parser.
	Init(parser ConfigParser) error

	// Name identifies the component in logs and errors.
	Name() string

	// Validate checks the component is usable after Init.
	Validate() error
}

// ConfigParser fills v with the component's configuration section.
type ConfigParser func(v any) error

// Lifecycle is implemented by components that run background work.
type Lifecycle interface {
	Component
	Start() error
	Stop() error
}

// Build initializes and validates a component against config.
func Build[T Component](component T, config any) (T, error) {
	var zero T

	parser := func(v any) error {
		return assign(config, v)
	}

	if err := component.Init(parser); err != nil {
		return zero, fmt.Errorf("init %s: %w", component.Name(), err)
	}
	if err := component.Validate(); err != nil {
		return zero, fmt.Errorf("validate %s: %w", component.Name(), err)
	}
	return component, nil
}

// BuildWithLogger is Build with progress logging around it.
func BuildWithLogger[T Component](component T, config any, logger *slog.Logger) (T, error) {
	logger.Debug("Building component", "name", component.Name())

	result, err := Build(component, config)
	if err != nil {
		logger.Error("Failed to build component", "name", component.Name(), "error", err)
		return result, err
	}

	logger.Info("Component built successfully", "name", component.Name())
	return result, nil
}

// assign copies source into the target pointer. Matching types are assigned
// directly; anything else goes through a JSON round trip, which covers maps
// and loosely typed config sections.
func assign(source any, target any) error {
	if reflect.TypeOf(source) == reflect.TypeOf(target).Elem() {
		reflect.ValueOf(target).Elem().Set(reflect.ValueOf(source))
		return nil
	}

	data, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}
