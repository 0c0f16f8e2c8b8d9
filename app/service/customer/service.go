// Package customer is the customer-context document store consulted at the start of a
// session. The latency setting makes it behave like a remote lookup.
package customer

import (
	"context"
	"fmt"
	"log/slog"
	"meetassist/app/client/boltdb"
	"meetassist/app/config"
	"strings"
	"time"

	"github.com/samber/do"
)

const bucket = "customers"

type Store interface {
	Get(bucket, key string, target any) (bool, error)
	Put(bucket, key string, value any) error
}

type Service struct {
	store   Store
	latency time.Duration
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	store := do.MustInvoke[*boltdb.Store](di)

	svc := NewService(store, cfg.Customer.Latency)

	if err := svc.Seed(cfg.Customer.Documents); err != nil {
		return nil, err
	}

	return svc, nil
}

func NewService(store Store, latency time.Duration) *Service {
	return &Service{
		store:   store,
		latency: latency,
	}
}

// Seed stores documents keyed by phone number, replacing existing entries.
func (s *Service) Seed(documents map[string][]string) error {
	for phone, docs := range documents {
		if err := s.store.Put(bucket, normalize(phone), docs); err != nil {
			return fmt.Errorf("failed to seed customer %s: %w", phone, err)
		}
	}

	if len(documents) > 0 {
		slog.Debug("Seeded customer documents", "count", len(documents))
	}

	return nil
}

// Lookup returns the context snippets for a phone number, or an empty list.
func (s *Service) Lookup(ctx context.Context, phone string) ([]string, error) {
	if s.latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.latency):
		}
	}

	key := normalize(phone)
	if key == "" {
		return []string{}, nil
	}

	var docs []string

	found, err := s.store.Get(bucket, key, &docs)
	if err != nil {
		return nil, err
	}
	if !found || docs == nil {
		return []string{}, nil
	}

	return docs, nil
}

func normalize(phone string) string {
	var builder strings.Builder

	for i, r := range strings.TrimSpace(phone) {
		if r >= '0' && r <= '9' || r == '+' && i == 0 {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}
