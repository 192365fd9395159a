// Package settings holds the connection settings of the admin UI: the
// Settings record, its persistence backends and the Manager that owns the
// current value.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Provider exposes the settings in effect for the next request
type Provider interface {
	Current() Settings
}

// Static is a Provider that always returns the same settings
type Static Settings

// Current implements Provider
func (s Static) Current() Settings {
	return Settings(s)
}

// Manager owns the current settings and writes changes through to a Store
type Manager struct {
	mu      sync.RWMutex
	store   Store
	current Settings
}

// NewManager creates a manager that starts with the defaults
func NewManager(store Store) *Manager {
	return &Manager{
		store:   store,
		current: Defaults(),
	}
}

// Init loads the persisted record merged over the defaults and writes the
// merged result back so the store always holds a complete record.
func (m *Manager) Init(ctx context.Context) error {
	values, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	loaded := FromMap(values)
	if err := m.store.Save(ctx, loaded.ToMap()); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}

	m.mu.Lock()
	m.current = loaded
	m.mu.Unlock()

	slog.Info("Connection settings loaded",
		"mode", loaded.Mode,
		"target", loaded.Target(),
		"products_endpoint", loaded.ProductsEndpoint,
		"token_set", loaded.Token != "")

	return nil
}

// Current implements Provider
func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Update normalizes and persists new settings, replacing the current ones
func (m *Manager) Update(ctx context.Context, s Settings) (Settings, error) {
	s = s.Normalize()

	if err := m.store.Save(ctx, s.ToMap()); err != nil {
		return Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	slog.Info("Connection settings updated", "mode", s.Mode, "target", s.Target())
	return s, nil
}
