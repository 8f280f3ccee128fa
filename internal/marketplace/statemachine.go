package marketplace

import (
	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/models"
)

var allowedTransitions = map[models.AdStatus]map[models.AdStatus]struct{}{
	models.AdOpen: {
		models.AdAssigned:  {},
		models.AdCancelled: {},
	},
	models.AdAssigned: {
		models.AdDone:      {},
		models.AdCancelled: {},
	},
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to models.AdStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

func checkTransition(op string, ad *models.Advertisement, to models.AdStatus) error {
	if CanTransition(ad.Status, to) {
		return nil
	}
	return newError(KindInvalidTransition, op, ad.ID, "cannot move from %s to %s", ad.Status, to)
}

// applyAssign moves an open advertisement to assigned.
func applyAssign(ad *models.Advertisement, contractorID uuid.UUID) error {
	if err := checkTransition("assign", ad, models.AdAssigned); err != nil {
		return err
	}
	c := contractorID
	ad.Status = models.AdAssigned
	ad.AssignedContractorID = &c
	ad.Completion = models.CompletionPending
	return nil
}

// applyContractorDone records phase one of the completion handshake.
// It reports whether anything changed.
func applyContractorDone(ad *models.Advertisement) (bool, error) {
	if ad.Status != models.AdAssigned {
		return false, newError(KindInvalidTransition, "mark_done", ad.ID, "advertisement is %s, not assigned", ad.Status)
	}
	if ad.Completion != models.CompletionPending {
		return false, nil
	}
	ad.Completion = models.CompletionContractorConfirmed
	return true, nil
}

// applyConfirmDone records phase two and finalizes the advertisement.
// It reports whether anything changed.
func applyConfirmDone(ad *models.Advertisement) (bool, error) {
	if ad.Status == models.AdDone {
		return false, nil
	}
	if err := checkTransition("confirm_done", ad, models.AdDone); err != nil {
		return false, err
	}
	if ad.Completion != models.CompletionContractorConfirmed {
		return false, newError(KindPreconditionFailed, "confirm_done", ad.ID, "contractor has not marked done")
	}
	ad.Completion = models.CompletionBothConfirmed
	ad.Status = models.AdDone
	return true, nil
}

// applyCancel moves an open or assigned advertisement to cancelled and
// releases the assigned contractor.
func applyCancel(ad *models.Advertisement) error {
	if err := checkTransition("cancel", ad, models.AdCancelled); err != nil {
		return err
	}
	ad.Status = models.AdCancelled
	ad.AssignedContractorID = nil
	ad.Completion = models.CompletionPending
	return nil
}
