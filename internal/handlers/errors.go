package handlers

import (
	"errors"
	"net/http"

	"github.com/MoeeinAali/CE419-WP/internal/marketplace"
)

type errorResponse struct {
	Error    string                `json:"error"`
	Kind     string                `json:"kind,omitempty"`
	Conflict *marketplace.Conflict `json:"conflict,omitempty"`
	Fields   []string              `json:"fields,omitempty"`
}

var kindStatus = map[marketplace.Kind]int{
	marketplace.KindInvalidTransition:  http.StatusConflict,
	marketplace.KindNotEligible:        http.StatusForbidden,
	marketplace.KindPreconditionFailed: http.StatusPreconditionFailed,
	marketplace.KindSchedulingConflict: http.StatusConflict,
	marketplace.KindDuplicateBid:       http.StatusConflict,
	marketplace.KindFieldNotAllowed:    http.StatusBadRequest,
	marketplace.KindValidation:         http.StatusBadRequest,
	marketplace.KindNotFound:           http.StatusNotFound,
}

// StatusFor maps an engine error to its HTTP status.
func StatusFor(err error) int {
	var merr *marketplace.Error
	if errors.As(err, &merr) {
		if status, ok := kindStatus[merr.Kind]; ok {
			return status
		}
	}
	if isRequestError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}

	resp := errorResponse{Error: err.Error()}
	var merr *marketplace.Error
	if errors.As(err, &merr) {
		resp.Error = merr.Message
		resp.Kind = string(merr.Kind)
		resp.Conflict = merr.Conflict
		resp.Fields = merr.Fields
	}
	writeJSON(w, status, resp)
}
