package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/models"
)

// DefaultConflictWindow is the buffer on each side of an execution time
// within which a contractor cannot hold a second commitment.
const DefaultConflictWindow = 2 * time.Hour

// FindConflict returns the first of the contractor's committed advertisements,
// other than excludeID, whose execution time is within window of candidate.
// The bound is inclusive.
func FindConflict(ctx context.Context, tx Tx, contractorID uuid.UUID, candidate time.Time, excludeID uuid.UUID, window time.Duration) (*Conflict, error) {
	committed, err := tx.CommittedAdvertisements(ctx, contractorID)
	if err != nil {
		return nil, fmt.Errorf("load commitments of contractor %s: %w", contractorID, err)
	}
	for _, other := range committed {
		if other.ID == excludeID || other.ExecutionTime == nil {
			continue
		}
		if other.Status != models.AdOpen && other.Status != models.AdAssigned {
			continue
		}
		if withinWindow(*other.ExecutionTime, candidate, window) {
			return &Conflict{
				AdvertisementID: other.ID,
				Title:           other.Title,
				ExecutionTime:   *other.ExecutionTime,
			}, nil
		}
	}
	return nil, nil
}

func withinWindow(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// checkSchedule locks the contractor and fails with a scheduling conflict
// when candidate overlaps another commitment.
func (s *Service) checkSchedule(ctx context.Context, tx Tx, op string, ad *models.Advertisement, contractorID uuid.UUID, candidate time.Time) error {
	if err := tx.LockContractor(ctx, contractorID); err != nil {
		return fmt.Errorf("lock contractor %s: %w", contractorID, err)
	}
	conflict, err := FindConflict(ctx, tx, contractorID, candidate, ad.ID, s.window)
	if err != nil {
		return err
	}
	if conflict == nil {
		return nil
	}
	return &Error{
		Kind:            KindSchedulingConflict,
		Op:              op,
		AdvertisementID: ad.ID,
		Message:         "contractor already has a job within the buffer window",
		Conflict:        conflict,
	}
}
