package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/internal/auth"
	"github.com/MoeeinAali/CE419-WP/internal/logger"
	"github.com/MoeeinAali/CE419-WP/models"
)

const (
	maxBodyBytes = 1048576
	defaultLimit = 20
	maxLimit     = 100
	dateLayout   = "2006-01-02"
)

// Handler serves the marketplace HTTP API.
type Handler struct {
	Svc  MarketplaceService
	Auth *auth.Authenticator
	Log  *logger.Logger
}

func NewHandler(svc MarketplaceService, authn *auth.Authenticator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{Svc: svc, Auth: authn, Log: log.With("service", "HTTP")}
}

// PingHandler answers "ok" for liveness checks.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams reads limit and offset, ignoring out-of-range values.
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: defaultLimit}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxLimit {
		params.Limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		params.Offset = o
	}
	return params
}

// readJSON decodes a size-limited request body into dst.
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return badRequest("failed to read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return badRequest("invalid JSON format")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func principal(r *http.Request) models.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, badRequest(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

func uuidQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid %s", name))
	}
	return &id, nil
}

func intQuery(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid %s", name))
	}
	return &v, nil
}

func floatQuery(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("invalid %s", name))
	}
	return &v, nil
}

// dateQuery parses a YYYY-MM-DD parameter as a UTC day.
func dateQuery(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return nil, badRequest(fmt.Sprintf("%s must be YYYY-MM-DD", name))
	}
	return &d, nil
}

// requestError is a malformed request rejected before reaching the engine.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

func isRequestError(err error) bool {
	var re *requestError
	return errors.As(err, &re)
}
