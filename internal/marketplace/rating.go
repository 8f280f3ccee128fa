package marketplace

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/models"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Rate records the owner's single rating of the assigned contractor once the
// advertisement is done.
func (s *Service) Rate(ctx context.Context, actor models.Principal, adID uuid.UUID, in models.NewComment) (comment *models.Comment, err error) {
	const op = "rate"
	ctx, span := s.startSpan(ctx, op, actor, adID)
	defer func() { endSpan(span, err) }()

	if in.Score < MinScore || in.Score > MaxScore {
		return nil, newError(KindValidation, op, adID, "score must be between %d and %d", MinScore, MaxScore)
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		ad, err := lockAdvertisement(ctx, tx, op, adID)
		if err != nil {
			return err
		}
		if ad.Status != models.AdDone {
			return newError(KindInvalidTransition, op, adID, "advertisement is %s, ratings open once done", ad.Status)
		}
		if actor.Role != models.RoleCustomer || !models.IsOwner(actor, ad) {
			return newError(KindNotEligible, op, adID, "only the owner can rate")
		}
		if !ad.IsAssignedTo(in.ContractorID) {
			return newError(KindNotEligible, op, adID, "contractor %s was not assigned to this advertisement", in.ContractorID)
		}
		candidate := &models.Comment{
			ID:              uuid.New(),
			AdvertisementID: adID,
			AuthorID:        actor.ID,
			ContractorID:    in.ContractorID,
			Score:           in.Score,
			Text:            strings.TrimSpace(in.Text),
			CreatedAt:       s.now().UTC(),
		}
		inserted, err := tx.InsertComment(ctx, candidate)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		if !inserted {
			return newError(KindNotEligible, op, adID, "advertisement already rated")
		}
		comment = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.log.Info("rating recorded",
		"advertisement_id", adID.String(),
		"contractor_id", comment.ContractorID.String(),
		"score", comment.Score,
	)
	return comment, nil
}
