package handlers

import (
	"net/http"

	"github.com/MoeeinAali/CE419-WP/models"
)

// CreateCommentHandler handles POST /api/advertisements/{adId}/comments.
func (h *Handler) CreateCommentHandler(w http.ResponseWriter, r *http.Request) {
	adID, err := uuidParam(r, "adId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in models.NewComment
	if err := readJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	comment, err := h.Svc.Rate(r.Context(), principal(r), adID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// ListCommentsHandler handles GET /api/comments.
func (h *Handler) ListCommentsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	filter := models.CommentFilter{Limit: params.Limit, Offset: params.Offset}

	var err error
	if filter.ContractorID, err = uuidQuery(r, "contractor_id"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.MinScore, err = intQuery(r, "min_score"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.MaxScore, err = intQuery(r, "max_score"); err != nil {
		h.writeError(w, r, err)
		return
	}

	comments, err := h.Svc.ListComments(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}
