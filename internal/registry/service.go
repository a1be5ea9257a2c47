package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/autolinkhq/autolink-backend/pkg/config"
	pkgerrors "github.com/autolinkhq/autolink-backend/pkg/errors"
)

const cacheTTL = 24 * time.Hour

type registryClient interface {
	Makes(ctx context.Context) ([]Make, error)
	Models(ctx context.Context, makeID int64, year int) ([]Model, error)
}

type cacheStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	RegistryCacheKey(parts ...string) string
}

// Service exposes validated registry lookups.
type Service interface {
	Makes(ctx context.Context, year int) ([]Make, error)
	Models(ctx context.Context, year int, makeID int64) ([]Model, error)
}

type service struct {
	client registryClient
	cache  cacheStore
	now    func() time.Time
}

// NewService builds a registry service. The cache is optional.
func NewService(client registryClient, cache cacheStore) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("registry client required")
	}
	return &service{
		client: client,
		cache:  cache,
		now:    time.Now,
	}, nil
}

func (s *service) validateYear(year int) error {
	maxYear := s.now().Year() + 1
	if year < config.StartModelYear || year > maxYear {
		return pkgerrors.New(
			pkgerrors.CodeValidation,
			fmt.Sprintf("model year must be between %d and %d", config.StartModelYear, maxYear),
		)
	}
	return nil
}

// Makes returns the car manufacturers available for the given model year.
// The registry does not scope makes by year; the year is validated so the
// follow-up model lookup is guaranteed to be in range.
func (s *service) Makes(ctx context.Context, year int) ([]Make, error) {
	if err := s.validateYear(year); err != nil {
		return nil, err
	}

	key := ""
	if s.cache != nil {
		key = s.cache.RegistryCacheKey("makes")
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var makes []Make
			if err := json.Unmarshal([]byte(cached), &makes); err == nil {
				return makes, nil
			}
		}
	}

	makes, err := s.client.Makes(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(makes) > 0 {
		if payload, err := json.Marshal(makes); err == nil {
			_ = s.cache.Set(ctx, key, string(payload), cacheTTL)
		}
	}

	return makes, nil
}

// Models returns the models a make produced in the given year.
func (s *service) Models(ctx context.Context, year int, makeID int64) ([]Model, error) {
	if err := s.validateYear(year); err != nil {
		return nil, err
	}
	if makeID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "makeId is required")
	}

	key := ""
	if s.cache != nil {
		key = s.cache.RegistryCacheKey("models", strconv.FormatInt(makeID, 10), strconv.Itoa(year))
		if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
			var models []Model
			if err := json.Unmarshal([]byte(cached), &models); err == nil {
				return models, nil
			}
		}
	}

	models, err := s.client.Models(ctx, makeID, year)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(models) > 0 {
		if payload, err := json.Marshal(models); err == nil {
			_ = s.cache.Set(ctx, key, string(payload), cacheTTL)
		}
	}

	return models, nil
}
