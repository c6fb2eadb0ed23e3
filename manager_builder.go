package converse

import (
	"log/slog"
)

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLogger sets a structured logger for the manager.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithStorage sets a storage backend for persisting generated images.
func WithStorage(storage Storage) ManagerOption {
	return func(m *Manager) {
		m.storage = storage
	}
}

// WithDefaultModel sets the chat model used when config.Model is empty.
func WithDefaultModel(model Model) ManagerOption {
	return func(m *Manager) {
		m.defaultModel = model
	}
}

// WithDefaultImageModel sets the image model used when config.Model is empty.
func WithDefaultImageModel(model Model) ManagerOption {
	return func(m *Manager) {
		m.defaultImageModel = model
	}
}

// WithTokenEstimator replaces the estimator used for rate limiting.
func WithTokenEstimator(estimator TokenEstimator) ManagerOption {
	return func(m *Manager) {
		m.tokenEstimator = estimator
	}
}

// NewManager creates a Manager with the given backends and options.
//
// Example:
//
//	backend, err := bedrock.New(ctx, bedrock.WithRegion("us-east-1"))
//	if err != nil {
//	    return err
//	}
//	manager := converse.NewManager([]converse.Backend{backend})
//
// With options:
//
//	manager := converse.NewManager([]converse.Backend{backend},
//	    converse.WithLogger(slog.Default()),
//	    converse.WithDefaultModel(converse.ModelClaude3Haiku),
//	)
func NewManager(backends []Backend, opts ...ManagerOption) *Manager {
	m := New()

	for _, backend := range backends {
		m.Register(backend)
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}
