package marketplace

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/models"
)

// PlaceBid records the acting contractor's application to an open advertisement.
// A second bid by the same contractor fails with duplicate_bid.
func (s *Service) PlaceBid(ctx context.Context, actor models.Principal, adID uuid.UUID) (bid *models.Bid, err error) {
	const op = "place_bid"
	ctx, span := s.startSpan(ctx, op, actor, adID)
	defer func() { endSpan(span, err) }()

	if actor.Role != models.RoleContractor {
		return nil, newError(KindNotEligible, op, adID, "only contractors can bid")
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		ad, err := lockAdvertisement(ctx, tx, op, adID)
		if err != nil {
			return err
		}
		if ad.Status != models.AdOpen {
			return newError(KindInvalidTransition, op, adID, "advertisement is %s, bids are accepted only while open", ad.Status)
		}
		candidate := &models.Bid{
			ID:              uuid.New(),
			AdvertisementID: adID,
			ContractorID:    actor.ID,
			CreatedAt:       s.now().UTC(),
		}
		inserted, err := tx.InsertBid(ctx, candidate)
		if err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}
		if !inserted {
			return newError(KindDuplicateBid, op, adID, "contractor %s already bid", actor.ID)
		}
		bid = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("bid placed", "advertisement_id", adID.String(), "contractor_id", actor.ID.String())
	return bid, nil
}

// HasApplied reports whether contractorID bid on the advertisement.
func (s *Service) HasApplied(ctx context.Context, adID, contractorID uuid.UUID) (bool, error) {
	ok, err := s.store.HasBid(ctx, adID, contractorID)
	if err != nil {
		return false, fmt.Errorf("check bid: %w", err)
	}
	return ok, nil
}

// ListBidsForAdvertisement returns the bids on an advertisement, oldest first.
// Only the owner, support and admin may see them.
func (s *Service) ListBidsForAdvertisement(ctx context.Context, actor models.Principal, adID uuid.UUID) ([]models.Bid, error) {
	ad, err := s.GetAdvertisement(ctx, adID)
	if err != nil {
		return nil, err
	}
	if !models.IsOwner(actor, ad) && actor.Role != models.RoleSupport && actor.Role != models.RoleAdmin {
		return nil, newError(KindNotEligible, "list_bids", adID, "only the owner can list bids")
	}
	bids, err := s.store.ListBidsForAdvertisement(ctx, adID)
	if err != nil {
		return nil, fmt.Errorf("list bids for advertisement %s: %w", adID, err)
	}
	return bids, nil
}

// ListBidsForContractor returns the contractor's bids, oldest first.
func (s *Service) ListBidsForContractor(ctx context.Context, contractorID uuid.UUID) ([]models.Bid, error) {
	bids, err := s.store.ListBidsForContractor(ctx, contractorID)
	if err != nil {
		return nil, fmt.Errorf("list bids for contractor %s: %w", contractorID, err)
	}
	return bids, nil
}

// ListBidsForPrincipal returns the bids visible to actor: a contractor's own
// bids or the bids on a customer's advertisements.
func (s *Service) ListBidsForPrincipal(ctx context.Context, actor models.Principal) ([]models.Bid, error) {
	switch actor.Role {
	case models.RoleContractor:
		return s.ListBidsForContractor(ctx, actor.ID)
	case models.RoleCustomer:
		bids, err := s.store.ListBidsForOwner(ctx, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("list bids for owner %s: %w", actor.ID, err)
		}
		return bids, nil
	default:
		return []models.Bid{}, nil
	}
}
