package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/MoeeinAali/CE419-WP/db"
	"github.com/MoeeinAali/CE419-WP/internal/auth"
	"github.com/MoeeinAali/CE419-WP/internal/handlers"
	"github.com/MoeeinAali/CE419-WP/internal/handlers/testutils"
	"github.com/MoeeinAali/CE419-WP/internal/marketplace"
	"github.com/MoeeinAali/CE419-WP/models"
)

type api struct {
	t      *testing.T
	authn  *auth.Authenticator
	server http.Handler
}

func newAPI(t *testing.T) *api {
	authn, err := auth.NewAuthenticator("test-secret")
	require.NoError(t, err)
	svc := marketplace.New(db.NewMemoryStorage(), nil)
	h := handlers.NewHandler(svc, authn, nil)
	return &api{t: t, authn: authn, server: h.Routes(5 * time.Second)}
}

func (a *api) do(p *models.Principal, method, path, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if p != nil {
		token, err := a.authn.IssueToken(*p, time.Hour)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.server.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type adResponse struct {
	ID                   uuid.UUID  `json:"id"`
	Status               string     `json:"status"`
	AssignedContractorID *uuid.UUID `json:"assignedContractorId"`
	ExecutionTime        *time.Time `json:"executionTime"`
	ContractorDone       bool       `json:"contractorDone"`
	CustomerConfirmed    bool       `json:"customerConfirmed"`
}

type errorBody struct {
	Error    string   `json:"error"`
	Kind     string   `json:"kind"`
	Fields   []string `json:"fields"`
	Conflict *struct {
		AdvertisementID uuid.UUID `json:"advertisementId"`
	} `json:"conflict"`
}

func principal(role models.Role) *models.Principal {
	return &models.Principal{ID: uuid.New(), Role: role}
}

func (a *api) postAd(owner *models.Principal, at string) adResponse {
	a.t.Helper()
	body := `{"title":"Fix roof","description":"Leaking after rain","category":"roofing"`
	if at != "" {
		body += `,"executionTime":"` + at + `"`
	}
	w := a.do(owner, http.MethodPost, "/api/advertisements", body+"}")
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[adResponse](a.t, w)
}

func TestPingHandler(t *testing.T) {
	a := newAPI(t)
	w := a.do(nil, http.MethodGet, "/api/ping", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestAuthenticationRequired(t *testing.T) {
	a := newAPI(t)
	w := a.do(nil, http.MethodGet, "/api/advertisements", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/advertisements", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid token", decode[errorBody](t, rec).Error)
}

func TestCreateAdvertisementHandler(t *testing.T) {
	a := newAPI(t)
	owner := principal(models.RoleCustomer)

	ad := a.postAd(owner, "2025-03-10T10:00:00Z")
	require.Equal(t, "open", ad.Status)
	require.False(t, ad.ContractorDone)

	w := a.do(owner, http.MethodPost, "/api/advertisements", `{"title":`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(owner, http.MethodPost, "/api/advertisements", `{"title":"","description":"d","category":"c"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "validation", decode[errorBody](t, w).Kind)

	w = a.do(principal(models.RoleContractor), http.MethodPost, "/api/advertisements",
		`{"title":"t","description":"d","category":"c"}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(owner, http.MethodGet, "/api/advertisements/"+ad.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(owner, http.MethodGet, "/api/advertisements/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(owner, http.MethodGet, "/api/advertisements/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)
	owner := principal(models.RoleCustomer)
	c := principal(models.RoleContractor)
	ad := a.postAd(owner, "2025-03-10T10:00:00Z")
	base := "/api/advertisements/" + ad.ID.String()

	w := a.do(c, http.MethodPost, base+"/bids", "")
	require.Equal(t, http.StatusCreated, w.Code)
	w = a.do(c, http.MethodPost, base+"/bids", "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "duplicate_bid", decode[errorBody](t, w).Kind)

	w = a.do(owner, http.MethodGet, base+"/bids", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]models.Bid](t, w), 1)

	w = a.do(c, http.MethodGet, "/api/bids/my", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]models.Bid](t, w), 1)

	w = a.do(owner, http.MethodPost, base+"/confirm_done", "")
	require.Equal(t, http.StatusConflict, w.Code)

	w = a.do(owner, http.MethodPost, base+"/assign", `{"contractorId":"`+c.ID.String()+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[adResponse](t, w)
	require.Equal(t, "assigned", got.Status)
	require.Equal(t, c.ID, *got.AssignedContractorID)

	w = a.do(owner, http.MethodPost, base+"/confirm_done", "")
	require.Equal(t, http.StatusPreconditionFailed, w.Code)

	w = a.do(c, http.MethodPost, base+"/mark_done", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, decode[adResponse](t, w).ContractorDone)

	w = a.do(owner, http.MethodPost, base+"/confirm_done", "")
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[adResponse](t, w)
	require.Equal(t, "done", got.Status)
	require.True(t, got.CustomerConfirmed)

	comment := `{"contractorId":"` + c.ID.String() + `","score":5,"text":"spotless"}`
	w = a.do(owner, http.MethodPost, base+"/comments", comment)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = a.do(owner, http.MethodPost, base+"/comments", comment)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(owner, http.MethodPost, base+"/cancel", "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "invalid_transition", decode[errorBody](t, w).Kind)

	w = a.do(owner, http.MethodGet, "/api/contractors/"+c.ID.String()+"/profile", "")
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[models.ContractorProfile](t, w)
	require.Equal(t, 1, profile.DoneCount)
	require.Equal(t, 1, profile.RatingCount)

	w = a.do(owner, http.MethodGet, "/api/contractors?sort_by=comments&min_comments=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]models.ContractorStats](t, w), 1)

	w = a.do(owner, http.MethodGet, "/api/contractors?sort_by=price", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(owner, http.MethodGet, "/api/comments?contractor_id="+c.ID.String()+"&min_score=4", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]models.Comment](t, w), 1)
}

func TestAssignConflictResponse(t *testing.T) {
	a := newAPI(t)
	owner := principal(models.RoleCustomer)
	c := principal(models.RoleContractor)
	assign := func(at string) *httptest.ResponseRecorder {
		ad := a.postAd(owner, at)
		base := "/api/advertisements/" + ad.ID.String()
		require.Equal(t, http.StatusCreated, a.do(c, http.MethodPost, base+"/bids", "").Code)
		return a.do(owner, http.MethodPost, base+"/assign", `{"contractorId":"`+c.ID.String()+`"}`)
	}

	first := assign("2025-03-10T10:00:00Z")
	require.Equal(t, http.StatusOK, first.Code)
	firstID := decode[adResponse](t, first).ID

	w := assign("2025-03-10T12:00:00Z")
	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[errorBody](t, w)
	require.Equal(t, "scheduling_conflict", body.Kind)
	require.NotNil(t, body.Conflict)
	require.Equal(t, firstID, body.Conflict.AdvertisementID)

	require.Equal(t, http.StatusOK, assign("2025-03-10T12:01:00Z").Code)

	w = a.do(c, http.MethodGet, "/api/contractors/schedule?date=2025-03-10", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]adResponse](t, w), 2)

	w = a.do(c, http.MethodGet, "/api/contractors/schedule?date=10/03/2025", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAdvertisementHandler(t *testing.T) {
	a := newAPI(t)
	owner := principal(models.RoleCustomer)
	c := principal(models.RoleContractor)
	ad := a.postAd(owner, "2025-03-10T10:00:00Z")
	base := "/api/advertisements/" + ad.ID.String()

	w := a.do(owner, http.MethodPatch, base, `{"status":"done","title":"New"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	require.Equal(t, "field_not_allowed", body.Kind)
	require.Equal(t, []string{"status"}, body.Fields)

	w = a.do(owner, http.MethodPatch, base, `{"title":"Fix roof and gutter"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, http.StatusCreated, a.do(c, http.MethodPost, base+"/bids", "").Code)
	require.Equal(t, http.StatusOK,
		a.do(owner, http.MethodPost, base+"/assign", `{"contractorId":"`+c.ID.String()+`"}`).Code)

	w = a.do(c, http.MethodPatch, base, `{"description":"cheaper"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, []string{"description"}, decode[errorBody](t, w).Fields)

	w = a.do(c, http.MethodPatch, base, `{"executionTime":"2025-03-11T08:00:00Z","location":"Back door"}`)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[adResponse](t, w)
	require.True(t, got.ExecutionTime.Equal(time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)))

	w = a.do(c, http.MethodPatch, base, `{"executionTime":null}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, decode[adResponse](t, w).ExecutionTime)

	w = a.do(c, http.MethodPatch, base, `{"executionTime":"tomorrow"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAdvertisementsHandler(t *testing.T) {
	a := newAPI(t)
	owner := principal(models.RoleCustomer)
	a.postAd(owner, "2025-03-10T10:00:00Z")
	a.postAd(owner, "2025-03-12T10:00:00Z")
	a.postAd(principal(models.RoleCustomer), "")

	w := a.do(owner, http.MethodGet, "/api/advertisements?owner="+owner.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]adResponse](t, w), 2)

	w = a.do(owner, http.MethodGet, "/api/advertisements?date=2025-03-12", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]adResponse](t, w), 1)

	w = a.do(owner, http.MethodGet, "/api/advertisements?limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]adResponse](t, w), 1)

	w = a.do(owner, http.MethodGet, "/api/advertisements?status=archived", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(owner, http.MethodGet, "/api/advertisements?owner=me", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// failingService returns a storage failure for every call it implements.
type failingService struct {
	handlers.MarketplaceService
}

func (failingService) GetAdvertisement(context.Context, uuid.UUID) (*models.Advertisement, error) {
	return nil, errors.New("connection refused")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := handlers.NewHandler(failingService{}, nil, nil)
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/advertisements/"+id, nil)
	req = testutils.WithChiURLParams(req, map[string]string{"adId": id})
	w := httptest.NewRecorder()

	h.GetAdvertisementHandler(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "internal error", decode[errorBody](t, w).Error)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{marketplace.ErrInvalidTransition, http.StatusConflict},
		{marketplace.ErrNotEligible, http.StatusForbidden},
		{marketplace.ErrPreconditionFailed, http.StatusPreconditionFailed},
		{marketplace.ErrSchedulingConflict, http.StatusConflict},
		{marketplace.ErrDuplicateBid, http.StatusConflict},
		{marketplace.ErrFieldNotAllowed, http.StatusBadRequest},
		{marketplace.ErrValidation, http.StatusBadRequest},
		{marketplace.ErrNotFound, http.StatusNotFound},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, handlers.StatusFor(tt.err), tt.err.Error())
	}
}
