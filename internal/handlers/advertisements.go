package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/internal/marketplace"
	"github.com/MoeeinAali/CE419-WP/models"
)

// CreateAdvertisementHandler handles POST /api/advertisements.
func (h *Handler) CreateAdvertisementHandler(w http.ResponseWriter, r *http.Request) {
	var in models.NewAdvertisement
	if err := readJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	ad, err := h.Svc.CreateAdvertisement(r.Context(), principal(r), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ad)
}

// ListAdvertisementsHandler handles GET /api/advertisements.
func (h *Handler) ListAdvertisementsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	filter := models.AdvertisementFilter{Limit: params.Limit, Offset: params.Offset}

	var err error
	if filter.OwnerID, err = uuidQuery(r, "owner"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.AssignedContractorID, err = uuidQuery(r, "contractor"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.ExecutionDate, err = dateQuery(r, "date"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := models.AdStatus(s)
		filter.Status = &status
	}

	ads, err := h.Svc.ListAdvertisements(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ads)
}

// GetAdvertisementHandler handles GET /api/advertisements/{adId}.
func (h *Handler) GetAdvertisementHandler(w http.ResponseWriter, r *http.Request) {
	adID, err := uuidParam(r, "adId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ad, err := h.Svc.GetAdvertisement(r.Context(), adID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}

var editableFields = map[string]bool{
	"title":         true,
	"description":   true,
	"category":      true,
	"executionTime": true,
	"location":      true,
}

// decodeUpdate turns a PATCH body into an AdvertisementUpdate. A null
// executionTime clears it; keys other than the editable fields are rejected.
func decodeUpdate(raw map[string]json.RawMessage) (models.AdvertisementUpdate, error) {
	var upd models.AdvertisementUpdate
	var rejected []string
	for key := range raw {
		if !editableFields[key] {
			rejected = append(rejected, key)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return upd, &marketplace.Error{
			Kind:    marketplace.KindFieldNotAllowed,
			Op:      "update",
			Message: "read-only or unknown fields",
			Fields:  rejected,
		}
	}

	str := func(key string) (*string, error) {
		v, ok := raw[key]
		if !ok {
			return nil, nil
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, badRequest(key + " must be a string")
		}
		return &s, nil
	}
	var err error
	if upd.Title, err = str("title"); err != nil {
		return upd, err
	}
	if upd.Description, err = str("description"); err != nil {
		return upd, err
	}
	if upd.Category, err = str("category"); err != nil {
		return upd, err
	}
	if upd.Location, err = str("location"); err != nil {
		return upd, err
	}
	if v, ok := raw["executionTime"]; ok {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			upd.ClearExecutionTime = true
		} else {
			var t time.Time
			if err := json.Unmarshal(v, &t); err != nil {
				return upd, badRequest("executionTime must be an RFC 3339 timestamp")
			}
			upd.ExecutionTime = &t
		}
	}
	return upd, nil
}

// UpdateAdvertisementHandler handles PATCH /api/advertisements/{adId}.
func (h *Handler) UpdateAdvertisementHandler(w http.ResponseWriter, r *http.Request) {
	adID, err := uuidParam(r, "adId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var raw map[string]json.RawMessage
	if err := readJSON(w, r, &raw); err != nil {
		h.writeError(w, r, err)
		return
	}
	upd, err := decodeUpdate(raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ad, err := h.Svc.UpdateAdvertisement(r.Context(), principal(r), adID, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}

type assignRequest struct {
	ContractorID uuid.UUID `json:"contractorId"`
}

// AssignHandler handles POST /api/advertisements/{adId}/assign.
func (h *Handler) AssignHandler(w http.ResponseWriter, r *http.Request) {
	adID, err := uuidParam(r, "adId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req assignRequest
	if err := readJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ad, err := h.Svc.Assign(r.Context(), principal(r), adID, req.ContractorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}

type transitionFunc func(ctx context.Context, actor models.Principal, adID uuid.UUID) (*models.Advertisement, error)

// transition runs a body-less lifecycle action on one advertisement.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	adID, err := uuidParam(r, "adId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ad, err := fn(r.Context(), principal(r), adID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ad)
}

// MarkDoneHandler handles POST /api/advertisements/{adId}/mark_done.
func (h *Handler) MarkDoneHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.MarkContractorDone)
}

// ConfirmDoneHandler handles POST /api/advertisements/{adId}/confirm_done.
func (h *Handler) ConfirmDoneHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.ConfirmDone)
}

// CancelHandler handles POST /api/advertisements/{adId}/cancel.
func (h *Handler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.Cancel)
}
