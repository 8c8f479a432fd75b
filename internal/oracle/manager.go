package oracle

import (
	"context"
	"sync"
)

// Manager holds the current settings and the client built from them. The
// client is resolved lazily and rebuilt only after the settings change.
type Manager struct {
	mu       sync.Mutex
	settings Settings
	client   Oracle
	build    func(Settings) (Oracle, error)
}

// NewManager creates a manager for the given settings.
func NewManager(s Settings) *Manager {
	return &Manager{settings: s, build: New}
}

// SetBuilder overrides how clients are constructed (for testing).
func (m *Manager) SetBuilder(build func(Settings) (Oracle, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.build = build
	m.client = nil
}

// Settings returns the current settings.
func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Update replaces the settings. The cached client is dropped only when
// something actually changed.
func (m *Manager) Update(s Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == m.settings {
		return
	}
	m.settings = s
	m.client = nil
}

// Resolution reports how the current settings route.
func (m *Manager) Resolution() Resolution {
	return Resolve(m.Settings())
}

// Oracle returns the cached client, building it on first use.
func (m *Manager) Oracle() (Oracle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}
	c, err := m.build(m.settings)
	if err != nil {
		return nil, err
	}
	m.client = c
	return c, nil
}

// Invoke forwards to the current client, so a Manager is itself an Oracle.
func (m *Manager) Invoke(ctx context.Context, prompt string) (string, error) {
	c, err := m.Oracle()
	if err != nil {
		return "", err
	}
	return c.Invoke(ctx, prompt)
}

// TestConnection probes the current client.
func (m *Manager) TestConnection(ctx context.Context) (string, error) {
	return TestConnection(ctx, m)
}
