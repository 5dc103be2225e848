package cloud

import (
	"context"
	"fmt"

	"beacon/internal/config"
	"beacon/pkg/circuitbreaker"
	pkgerrors "beacon/pkg/errors"
)

type CircuitBreakerIconStore struct {
	store IconStore
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerIconStore(store IconStore, cfg config.CircuitBreakerConfig) *CircuitBreakerIconStore {
	if !cfg.Enabled {
		return &CircuitBreakerIconStore{store: store}
	}
	return &CircuitBreakerIconStore{
		store: store,
		cb:    circuitbreaker.NewWrapper(circuitbreaker.FromSettings("mongodb-icons", cfg)),
	}
}

// QueryIcon counts a missing icon as a successful call so that lookups of
// unknown names never trip the breaker.
func (s *CircuitBreakerIconStore) QueryIcon(ctx context.Context, name string) (*Icon, error) {
	if s.cb == nil {
		return s.store.QueryIcon(ctx, name)
	}

	var notFound error
	icon, err := circuitbreaker.Do(ctx, s.cb, func() (*Icon, error) {
		icon, err := s.store.QueryIcon(ctx, name)
		if pkgerrors.IsNotFound(err) {
			notFound = err
			return nil, nil
		}
		return icon, err
	})
	if notFound != nil {
		return nil, notFound
	}
	if err != nil {
		if s.cb.IsOpen() {
			return nil, fmt.Errorf("circuit breaker is open for mongodb-icons: %w", err)
		}
		return nil, err
	}
	return icon, nil
}

func (s *CircuitBreakerIconStore) UpsertIcon(ctx context.Context, icon Icon) error {
	if s.cb == nil {
		return s.store.UpsertIcon(ctx, icon)
	}
	_, err := circuitbreaker.Do(ctx, s.cb, func() (struct{}, error) {
		return struct{}{}, s.store.UpsertIcon(ctx, icon)
	})
	return err
}

func (s *CircuitBreakerIconStore) State() string {
	if s.cb == nil {
		return "disabled"
	}
	return s.cb.State().String()
}
