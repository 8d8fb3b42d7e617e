package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medibook/booking-api/internal/model"
	"github.com/medibook/booking-api/internal/repository"
)

type providerRepository struct {
	BaseRepository
}

func NewProviderRepository(base BaseRepository) repository.ProviderRepository {
	return &providerRepository{base}
}

func (r *providerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	query := `
		SELECT id, name, specialty, bio, photo_url, timezone,
			   slot_minutes, workday_start, workday_end, consult_fee,
			   status, created_at, updated_at
		FROM providers
		WHERE id = $1
	`
	var provider model.Provider
	if err := r.GetDB().GetContext(ctx, &provider, query, id); err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", mapNotFound(err))
	}
	return &provider, nil
}

func (r *providerRepository) List(ctx context.Context, filter *model.ProviderFilter) ([]*model.Provider, error) {
	query := `
		SELECT id, name, specialty, bio, photo_url, timezone,
			   slot_minutes, workday_start, workday_end, consult_fee,
			   status, created_at, updated_at
		FROM providers
		WHERE status = $1
	`
	args := []interface{}{model.ProviderStatusActive}
	if filter != nil && filter.Status != "" {
		args[0] = filter.Status
	}
	if filter != nil && filter.Specialty != "" {
		query += ` AND specialty = $2`
		args = append(args, filter.Specialty)
	}
	query += ` ORDER BY name`

	var providers []*model.Provider
	if err := r.GetDB().SelectContext(ctx, &providers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	return providers, nil
}
