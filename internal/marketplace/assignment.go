package marketplace

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/models"
)

// Assign binds a contractor who bid on the advertisement to it. The bid
// check, the schedule check and the status change run in one transaction
// under the advertisement and contractor locks.
func (s *Service) Assign(ctx context.Context, actor models.Principal, adID, contractorID uuid.UUID) (ad *models.Advertisement, err error) {
	const op = "assign"
	ctx, span := s.startSpan(ctx, op, actor, adID)
	defer func() { endSpan(span, err) }()

	if contractorID == uuid.Nil {
		return nil, newError(KindValidation, op, adID, "contractor id is required")
	}

	var from models.AdStatus
	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := lockAdvertisement(ctx, tx, op, adID)
		if err != nil {
			return err
		}
		if !models.IsOwner(actor, locked) {
			return newError(KindNotEligible, op, adID, "only the owner can assign a contractor")
		}
		if err := checkTransition(op, locked, models.AdAssigned); err != nil {
			return err
		}
		applied, err := tx.HasBid(ctx, adID, contractorID)
		if err != nil {
			return fmt.Errorf("check bid: %w", err)
		}
		if !applied {
			return newError(KindNotEligible, op, adID, "contractor %s did not bid", contractorID)
		}
		if locked.ExecutionTime != nil {
			if err := s.checkSchedule(ctx, tx, op, locked, contractorID, *locked.ExecutionTime); err != nil {
				return err
			}
		}
		from = locked.Status
		if err := applyAssign(locked, contractorID); err != nil {
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

// Reschedule lets the assigned contractor change the execution time and
// location. Any other field fails with field_not_allowed.
func (s *Service) Reschedule(ctx context.Context, actor models.Principal, adID uuid.UUID, upd models.AdvertisementUpdate) (ad *models.Advertisement, err error) {
	const op = "reschedule"
	ctx, span := s.startSpan(ctx, op, actor, adID)
	defer func() { endSpan(span, err) }()

	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := lockAdvertisement(ctx, tx, op, adID)
		if err != nil {
			return err
		}
		if !locked.IsAssignedTo(actor.ID) {
			return newError(KindNotEligible, op, adID, "only the assigned contractor can reschedule")
		}
		if err := s.rescheduleLocked(ctx, tx, locked, upd); err != nil {
			return err
		}
		ad = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logTransition(op, actor, ad, ad.Status)
	return ad, nil
}

func (s *Service) rescheduleLocked(ctx context.Context, tx Tx, ad *models.Advertisement, upd models.AdvertisementUpdate) error {
	const op = "reschedule"
	if ad.Status != models.AdAssigned {
		return newError(KindInvalidTransition, op, ad.ID, "advertisement is %s, not assigned", ad.Status)
	}
	var rejected []string
	if upd.Title != nil {
		rejected = append(rejected, "title")
	}
	if upd.Description != nil {
		rejected = append(rejected, "description")
	}
	if upd.Category != nil {
		rejected = append(rejected, "category")
	}
	if len(rejected) > 0 {
		return &Error{
			Kind:            KindFieldNotAllowed,
			Op:              op,
			AdvertisementID: ad.ID,
			Message:         "contractor can only update executionTime and location",
			Fields:          rejected,
		}
	}
	if err := validateLocation(op, ad.ID, upd.Location); err != nil {
		return err
	}
	if upd.ExecutionTime != nil {
		candidate := upd.ExecutionTime.UTC()
		if err := s.checkSchedule(ctx, tx, op, ad, *ad.AssignedContractorID, candidate); err != nil {
			return err
		}
		ad.ExecutionTime = &candidate
	} else if upd.ClearExecutionTime {
		ad.ExecutionTime = nil
	}
	if upd.Location != nil {
		loc := *upd.Location
		ad.Location = &loc
	}
	return s.save(ctx, tx, ad)
}

// UpdateAdvertisement is the generic edit path. The assigned contractor is
// routed through Reschedule rules; the owner may edit descriptive fields
// while the advertisement is open or assigned, and the execution time only
// while it is open.
func (s *Service) UpdateAdvertisement(ctx context.Context, actor models.Principal, adID uuid.UUID, upd models.AdvertisementUpdate) (ad *models.Advertisement, err error) {
	const op = "update"
	ctx, span := s.startSpan(ctx, op, actor, adID)
	defer func() { endSpan(span, err) }()

	err = s.store.InTx(ctx, func(tx Tx) error {
		locked, err := lockAdvertisement(ctx, tx, op, adID)
		if err != nil {
			return err
		}
		if locked.IsAssignedTo(actor.ID) {
			if err := s.rescheduleLocked(ctx, tx, locked, upd); err != nil {
				return err
			}
			ad = locked
			return nil
		}
		if !models.IsOwner(actor, locked) {
			return newError(KindNotEligible, op, adID, "only the owner or the assigned contractor can edit")
		}
		if locked.Status != models.AdOpen && locked.Status != models.AdAssigned {
			return newError(KindInvalidTransition, op, adID, "advertisement is %s and can no longer be edited", locked.Status)
		}
		if locked.Status == models.AdAssigned && (upd.ExecutionTime != nil || upd.ClearExecutionTime) {
			return &Error{
				Kind:            KindFieldNotAllowed,
				Op:              op,
				AdvertisementID: adID,
				Message:         "execution time of an assigned advertisement is set by the contractor",
				Fields:          []string{"executionTime"},
			}
		}
		if err := applyOwnerUpdate(op, locked, upd); err != nil {
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
	s.logTransition(op, actor, ad, ad.Status)
	return ad, nil
}

func applyOwnerUpdate(op string, ad *models.Advertisement, upd models.AdvertisementUpdate) error {
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
			return newError(KindValidation, op, ad.ID, "title is required and max length %d", maxTitleLen)
		}
		ad.Title = title
	}
	if upd.Description != nil {
		description := strings.TrimSpace(*upd.Description)
		if description == "" {
			return newError(KindValidation, op, ad.ID, "description is required")
		}
		ad.Description = description
	}
	if upd.Category != nil {
		category := strings.TrimSpace(*upd.Category)
		if category == "" || utf8.RuneCountInString(category) > maxCategoryLen {
			return newError(KindValidation, op, ad.ID, "category is required and max length %d", maxCategoryLen)
		}
		ad.Category = category
	}
	if err := validateLocation(op, ad.ID, upd.Location); err != nil {
		return err
	}
	if upd.Location != nil {
		loc := *upd.Location
		ad.Location = &loc
	}
	if upd.ExecutionTime != nil {
		t := upd.ExecutionTime.UTC()
		ad.ExecutionTime = &t
	} else if upd.ClearExecutionTime {
		ad.ExecutionTime = nil
	}
	return nil
}
