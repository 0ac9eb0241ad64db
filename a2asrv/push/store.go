package push

import (
	"context"
	"sync"

	"github.com/a2aserver/a2acore/a2a"
)

// CRUDStore is the full push-notification-config registry surface the
// request handler's config CRUD operations (C5) delegate to.
type CRUDStore interface {
	ConfigStore
	Set(ctx context.Context, taskID a2a.TaskID, cfg a2a.PushNotificationConfig) error
	Get(ctx context.Context, taskID a2a.TaskID, configID string) (a2a.PushNotificationConfig, error)
	Delete(ctx context.Context, taskID a2a.TaskID, configID string) error
}

// InMemoryConfigStore holds PushNotificationConfig registrations per task,
// keyed by (taskID, config.ID), matching the teacher's map-of-slice
// registry idiom used for other per-entity collections in this codebase.
type InMemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[a2a.TaskID][]a2a.PushNotificationConfig
}

// NewInMemoryConfigStore constructs an empty store.
func NewInMemoryConfigStore() *InMemoryConfigStore {
	return &InMemoryConfigStore{configs: make(map[a2a.TaskID][]a2a.PushNotificationConfig)}
}

// Set upserts cfg for taskID, matching by ID. An empty cfg.ID is treated as
// a fresh registration (appended, never matched for replacement).
func (s *InMemoryConfigStore) Set(ctx context.Context, taskID a2a.TaskID, cfg a2a.PushNotificationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.configs[taskID]
	if cfg.ID != "" {
		for i, c := range existing {
			if c.ID == cfg.ID {
				existing[i] = cfg
				s.configs[taskID] = existing
				return nil
			}
		}
	}
	s.configs[taskID] = append(existing, cfg)
	return nil
}

// Delete removes the config identified by (taskID, configID). It is a
// no-op if no such config is registered.
func (s *InMemoryConfigStore) Delete(ctx context.Context, taskID a2a.TaskID, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.configs[taskID]
	for i, c := range existing {
		if c.ID == configID {
			s.configs[taskID] = append(existing[:i], existing[i+1:]...)
			return nil
		}
	}
	return nil
}

// Get returns the single config identified by (taskID, configID), or a
// PushNotificationConfigNotFound error.
func (s *InMemoryConfigStore) Get(ctx context.Context, taskID a2a.TaskID, configID string) (a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.configs[taskID] {
		if c.ID == configID {
			return c, nil
		}
	}
	return a2a.PushNotificationConfig{}, a2a.PushNotificationConfigNotFoundError(taskID, configID)
}

// ListConfigs implements ConfigStore.
func (s *InMemoryConfigStore) ListConfigs(ctx context.Context, taskID a2a.TaskID) ([]a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]a2a.PushNotificationConfig, len(s.configs[taskID]))
	copy(out, s.configs[taskID])
	return out, nil
}

var _ ConfigStore = (*InMemoryConfigStore)(nil)
var _ CRUDStore = (*InMemoryConfigStore)(nil)
