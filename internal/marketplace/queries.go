package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/models"
)

func (s *Service) GetAdvertisement(ctx context.Context, id uuid.UUID) (*models.Advertisement, error) {
	ad, found, err := s.store.GetAdvertisement(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get advertisement %s: %w", id, err)
	}
	if !found {
		return nil, newError(KindNotFound, "get", id, "advertisement not found")
	}
	return ad, nil
}

func (s *Service) ListAdvertisements(ctx context.Context, filter models.AdvertisementFilter) ([]models.Advertisement, error) {
	if filter.Status != nil && !models.ValidAdStatus(*filter.Status) {
		return nil, newError(KindValidation, "list", uuid.Nil, "invalid status %q", *filter.Status)
	}
	ads, err := s.store.ListAdvertisements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list advertisements: %w", err)
	}
	return ads, nil
}

// ContractorSchedule returns the contractor's assigned jobs that have an
// execution time, earliest first, optionally limited to one UTC day.
func (s *Service) ContractorSchedule(ctx context.Context, actor models.Principal, date *time.Time) ([]models.Advertisement, error) {
	if actor.Role != models.RoleContractor {
		return nil, newError(KindNotEligible, "schedule", uuid.Nil, "only contractors have a schedule")
	}
	ads, err := s.store.ListSchedule(ctx, actor.ID, date)
	if err != nil {
		return nil, fmt.Errorf("list schedule: %w", err)
	}
	return ads, nil
}

func (s *Service) ListComments(ctx context.Context, filter models.CommentFilter) ([]models.Comment, error) {
	comments, err := s.store.ListComments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// ListContractorStats is the contractor discovery view: average score and
// rating count per rated contractor.
func (s *Service) ListContractorStats(ctx context.Context, filter models.ContractorStatsFilter) ([]models.ContractorStats, error) {
	switch filter.SortBy {
	case "", models.SortByScore, models.SortByCount:
	default:
		return nil, newError(KindValidation, "contractors", uuid.Nil, "sort_by must be %q or %q", models.SortByScore, models.SortByCount)
	}
	var generation int64
	if s.cache != nil {
		stats, gen, ok := s.cache.GetStats(ctx, filter)
		if ok {
			return stats, nil
		}
		generation = gen
	}
	stats, err := s.store.ListContractorStats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list contractor stats: %w", err)
	}
	if s.cache != nil {
		s.cache.SetStats(ctx, generation, filter, stats)
	}
	return stats, nil
}

// ContractorProfile aggregates a contractor's ratings and finished jobs.
func (s *Service) ContractorProfile(ctx context.Context, contractorID uuid.UUID) (*models.ContractorProfile, error) {
	stats, err := s.store.GetContractorStats(ctx, contractorID)
	if err != nil {
		return nil, fmt.Errorf("contractor stats: %w", err)
	}
	done, err := s.store.CountDone(ctx, contractorID)
	if err != nil {
		return nil, fmt.Errorf("count done advertisements: %w", err)
	}
	comments, err := s.store.ListComments(ctx, models.CommentFilter{ContractorID: &contractorID})
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return &models.ContractorProfile{
		ContractorStats: stats,
		DoneCount:       done,
		Comments:        comments,
	}, nil
}
