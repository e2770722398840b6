package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"restaurant-orders/internal/apperr"
	"restaurant-orders/internal/logx"
)

// Factory builds a stopped engine for a restaurant.
type Factory func(restaurantID string) *Engine

// Manager keeps one engine per followed restaurant.
type Manager struct {
	newEngine Factory
	logger    logx.Logger

	mu      sync.Mutex
	engines map[string]*Engine
}

// NewManager creates a Manager.
func NewManager(newEngine Factory, logger logx.Logger) *Manager {
	if logger == nil {
		logger = logx.Nop()
	}
	return &Manager{
		newEngine: newEngine,
		logger:    logger,
		engines:   make(map[string]*Engine),
	}
}

// StartEngine starts following a restaurant.
func (m *Manager) StartEngine(ctx context.Context, restaurantID string) error {
	restaurantID = strings.TrimSpace(restaurantID)
	if restaurantID == "" {
		return fmt.Errorf("restaurant id: %w", apperr.ErrInvalid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.engines[restaurantID]; ok {
		return fmt.Errorf("engine for %s already running: %w", restaurantID, apperr.ErrConflict)
	}
	e := m.newEngine(restaurantID)
	if err := e.Start(ctx, restaurantID); err != nil {
		return err
	}
	m.engines[restaurantID] = e
	return nil
}

// StopEngine stops following a restaurant.
func (m *Manager) StopEngine(restaurantID string) error {
	m.mu.Lock()
	e, ok := m.engines[restaurantID]
	delete(m.engines, restaurantID)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("engine for %s: %w", restaurantID, apperr.ErrNotFound)
	}
	e.Stop()
	return nil
}

// Engine returns the running engine of a restaurant.
func (m *Manager) Engine(restaurantID string) (*Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.engines[restaurantID]
	return e, ok
}

// Restaurants returns the followed restaurants, sorted.
func (m *Manager) Restaurants() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.engines))
	for id := range m.engines {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// StopAll stops every engine concurrently and waits for them.
func (m *Manager) StopAll() {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[string]*Engine)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for id, e := range engines {
		wg.Add(1)
		go func(id string, e *Engine) {
			defer wg.Done()
			e.Stop()
			m.logger.Debug("engine released", logx.RestaurantID(id))
		}(id, e)
	}
	wg.Wait()
}

// Views returns the order views of a followed restaurant.
func (m *Manager) Views(restaurantID string) ([]OrderView, error) {
	e, ok := m.Engine(restaurantID)
	if !ok {
		return nil, fmt.Errorf("engine for %s: %w", restaurantID, apperr.ErrNotFound)
	}
	return e.Views(), nil
}

// View returns the view of one order of a followed restaurant.
func (m *Manager) View(restaurantID, orderID string) (OrderView, error) {
	e, ok := m.Engine(restaurantID)
	if !ok {
		return OrderView{}, fmt.Errorf("engine for %s: %w", restaurantID, apperr.ErrNotFound)
	}
	v, ok := e.View(orderID)
	if !ok {
		return OrderView{}, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	}
	return v, nil
}
