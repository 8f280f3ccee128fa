package handlers

import (
	"net/http"
)

// CreateBidHandler handles POST /api/advertisements/{adId}/bids.
func (h *Handler) CreateBidHandler(w http.ResponseWriter, r *http.Request) {
	adID, err := uuidParam(r, "adId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bid, err := h.Svc.PlaceBid(r.Context(), principal(r), adID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// GetBidsForAdvertisementHandler handles GET /api/advertisements/{adId}/bids.
func (h *Handler) GetBidsForAdvertisementHandler(w http.ResponseWriter, r *http.Request) {
	adID, err := uuidParam(r, "adId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bids, err := h.Svc.ListBidsForAdvertisement(r.Context(), principal(r), adID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// GetMyBidsHandler handles GET /api/bids/my.
func (h *Handler) GetMyBidsHandler(w http.ResponseWriter, r *http.Request) {
	bids, err := h.Svc.ListBidsForPrincipal(r.Context(), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}
