package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MoeeinAali/CE419-WP/internal/logger"
	"github.com/MoeeinAali/CE419-WP/models"
)

const (
	maxTitleLen    = 255
	maxCategoryLen = 100
	maxLocationLen = 255
)

// Service is the advertisement lifecycle and assignment engine.
type Service struct {
	store  Store
	log    *logger.Logger
	tracer trace.Tracer
	cache  StatsCache
	now    func() time.Time
	window time.Duration
}

type Option func(*Service)

// WithConflictWindow overrides DefaultConflictWindow.
func WithConflictWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func WithStatsCache(cache StatsCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func New(store Store, log *logger.Logger, options ...Option) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		store:  store,
		log:    log.With("service", "Marketplace"),
		tracer: otel.Tracer("marketplace"),
		now:    time.Now,
		window: DefaultConflictWindow,
	}
	for _, option := range options {
		if option != nil {
			option(s)
		}
	}
	return s
}

// ConflictWindow returns the configured buffer window.
func (s *Service) ConflictWindow() time.Duration { return s.window }

func (s *Service) startSpan(ctx context.Context, op string, actor models.Principal, adID uuid.UUID) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "marketplace."+op)
	span.SetAttributes(
		attribute.String("actor_id", actor.ID.String()),
		attribute.String("actor_role", string(actor.Role)),
	)
	if adID != uuid.Nil {
		span.SetAttributes(attribute.String("advertisement_id", adID.String()))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (s *Service) logTransition(op string, actor models.Principal, ad *models.Advertisement, from models.AdStatus) {
	s.log.Info("advertisement updated",
		"op", op,
		"advertisement_id", ad.ID.String(),
		"actor_id", actor.ID.String(),
		"from", string(from),
		"to", string(ad.Status),
		"completion", string(ad.Completion),
	)
}

// lockAdvertisement loads and locks the advertisement or fails with not_found.
func lockAdvertisement(ctx context.Context, tx Tx, op string, id uuid.UUID) (*models.Advertisement, error) {
	ad, found, err := tx.LockAdvertisement(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock advertisement %s: %w", id, err)
	}
	if !found {
		return nil, newError(KindNotFound, op, id, "advertisement not found")
	}
	return ad, nil
}

func (s *Service) save(ctx context.Context, tx Tx, ad *models.Advertisement) error {
	ad.UpdatedAt = s.now().UTC()
	if err := tx.SaveAdvertisement(ctx, ad); err != nil {
		return fmt.Errorf("save advertisement %s: %w", ad.ID, err)
	}
	return nil
}

// CreateAdvertisement posts a new open advertisement owned by actor.
func (s *Service) CreateAdvertisement(ctx context.Context, actor models.Principal, in models.NewAdvertisement) (ad *models.Advertisement, err error) {
	ctx, span := s.startSpan(ctx, "create", actor, uuid.Nil)
	defer func() { endSpan(span, err) }()

	if actor.Role != models.RoleCustomer {
		return nil, newError(KindNotEligible, "create", uuid.Nil, "only customers can create advertisements")
	}
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	category := strings.TrimSpace(in.Category)
	switch {
	case title == "" || utf8.RuneCountInString(title) > maxTitleLen:
		return nil, newError(KindValidation, "create", uuid.Nil, "title is required and max length %d", maxTitleLen)
	case description == "":
		return nil, newError(KindValidation, "create", uuid.Nil, "description is required")
	case category == "" || utf8.RuneCountInString(category) > maxCategoryLen:
		return nil, newError(KindValidation, "create", uuid.Nil, "category is required and max length %d", maxCategoryLen)
	}
	if err := validateLocation("create", uuid.Nil, in.Location); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ad = &models.Advertisement{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Category:    category,
		Status:      models.AdOpen,
		OwnerID:     actor.ID,
		Location:    in.Location,
		Completion:  models.CompletionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.ExecutionTime != nil {
		t := in.ExecutionTime.UTC()
		ad.ExecutionTime = &t
	}
	if err := s.store.CreateAdvertisement(ctx, ad); err != nil {
		return nil, fmt.Errorf("create advertisement: %w", err)
	}
	s.log.Info("advertisement created", "advertisement_id", ad.ID.String(), "owner_id", actor.ID.String())
	return ad, nil
}

func validateLocation(op string, adID uuid.UUID, location *string) error {
	if location != nil && utf8.RuneCountInString(*location) > maxLocationLen {
		return newError(KindValidation, op, adID, "location max length %d", maxLocationLen)
	}
	return nil
}
