// Package registry maps node types to their handler factories and validates
// node parameters against each factory's schema.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/threadlinehq/threadline/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.HandlerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]protocol.HandlerFactory),
	}
}

func (r *Registry) Register(factory protocol.HandlerFactory) {
	r.factories[factory.ID()] = factory
}

// IsKnownType reports whether a handler factory is registered for the node type.
func (r *Registry) IsKnownType(nodeType string) bool {
	_, ok := r.factories[nodeType]

	return ok
}

// KnownTypes returns the registered node type tags.
func (r *Registry) KnownTypes() []string {
	types := make([]string, 0, len(r.factories))
	for nodeType := range r.factories {
		types = append(types, nodeType)
	}

	return types
}

// CreateHandler instantiates a handler for the node type with the given
// parameters.
func (r *Registry) CreateHandler(ctx context.Context, nodeType, nodeID string, params map[string]any) (protocol.Handler, error) {
	factory, ok := r.factories[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	return factory.Create(ctx, nodeID, params)
}

// ValidateParams checks node parameters against the factory's JSON schema.
// Called at workflow save time so malformed parameters never reach execution.
func (r *Registry) ValidateParams(nodeType string, params map[string]any) error {
	factory, ok := r.factories[nodeType]
	if !ok {
		return fmt.Errorf("node type '%s' not registered", nodeType)
	}

	schemaJSON, err := json.Marshal(factory.Schema())
	if err != nil {
		return fmt.Errorf("failed to marshal schema for '%s': %w", nodeType, err)
	}

	if params == nil {
		params = map[string]any{}
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(paramsJSON),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed for '%s': %w", nodeType, err)
	}

	if !result.Valid() {
		for _, desc := range result.Errors() {
			return fmt.Errorf("invalid params for node type '%s': %s", nodeType, desc)
		}
	}

	return nil
}
