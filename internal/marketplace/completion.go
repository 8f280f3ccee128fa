package marketplace

import (
	"context"

	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/models"
)

// MarkContractorDone is phase one of the completion handshake. Repeating it
// after success changes nothing.
func (s *Service) MarkContractorDone(ctx context.Context, actor models.Principal, adID uuid.UUID) (ad *models.Advertisement, err error) {
	const op = "mark_done"
	ctx, span := s.startSpan(ctx, op, actor, adID)
	defer func() { endSpan(span, err) }()

	var changed bool
	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := lockAdvertisement(ctx, tx, op, adID)
		if err != nil {
			return err
		}
		if !locked.IsAssignedTo(actor.ID) {
			return newError(KindNotEligible, op, adID, "you are not the assigned contractor")
		}
		changed, err = applyContractorDone(locked)
		if err != nil {
			return err
		}
		if changed {
			if err := s.save(ctx, tx, locked); err != nil {
				return err
			}
		}
		ad = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logTransition(op, actor, ad, ad.Status)
	}
	return ad, nil
}

// ConfirmDone is phase two: the owner confirms a job the contractor marked
// done, which finalizes the advertisement. Confirming a done advertisement
// again changes nothing.
func (s *Service) ConfirmDone(ctx context.Context, actor models.Principal, adID uuid.UUID) (ad *models.Advertisement, err error) {
	const op = "confirm_done"
	ctx, span := s.startSpan(ctx, op, actor, adID)
	defer func() { endSpan(span, err) }()

	var changed bool
	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := lockAdvertisement(ctx, tx, op, adID)
		if err != nil {
			return err
		}
		if !models.IsOwner(actor, locked) {
			return newError(KindNotEligible, op, adID, "only the owner can confirm completion")
		}
		changed, err = applyConfirmDone(locked)
		if err != nil {
			return err
		}
		if changed {
			if err := s.save(ctx, tx, locked); err != nil {
				return err
			}
		}
		ad = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logTransition(op, actor, ad, models.AdAssigned)
	}
	return ad, nil
}

// Cancel withdraws an open or assigned advertisement. Done and cancelled
// advertisements cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, actor models.Principal, adID uuid.UUID) (ad *models.Advertisement, err error) {
	const op = "cancel"
	ctx, span := s.startSpan(ctx, op, actor, adID)
	defer func() { endSpan(span, err) }()

	var from models.AdStatus
	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := lockAdvertisement(ctx, tx, op, adID)
		if err != nil {
			return err
		}
		if !models.IsOwner(actor, locked) {
			return newError(KindNotEligible, op, adID, "only the owner can cancel")
		}
		from = locked.Status
		if err := applyCancel(locked); err != nil {
			return err
		}
		if err := s.save(ctx, tx, locked); err != nil {
			return err
		}
		ad = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(op, actor, ad, from)
	return ad, nil
}
