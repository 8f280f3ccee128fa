package handlers

import (
	"net/http"

	"github.com/MoeeinAali/CE419-WP/models"
)

// ListContractorsHandler handles GET /api/contractors.
func (h *Handler) ListContractorsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	filter := models.ContractorStatsFilter{
		SortBy: models.StatsSort(r.URL.Query().Get("sort_by")),
		Limit:  params.Limit,
		Offset: params.Offset,
	}

	var err error
	if filter.MinScore, err = floatQuery(r, "min_score"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.MinCount, err = intQuery(r, "min_comments"); err != nil {
		h.writeError(w, r, err)
		return
	}

	stats, err := h.Svc.ListContractorStats(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ContractorProfileHandler handles GET /api/contractors/{contractorId}/profile.
func (h *Handler) ContractorProfileHandler(w http.ResponseWriter, r *http.Request) {
	contractorID, err := uuidParam(r, "contractorId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	profile, err := h.Svc.ContractorProfile(r.Context(), contractorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ScheduleHandler handles GET /api/contractors/schedule for the acting contractor.
func (h *Handler) ScheduleHandler(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r, "date")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	ads, err := h.Svc.ContractorSchedule(r.Context(), principal(r), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ads)
}
