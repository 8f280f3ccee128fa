package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/models"
)

// MarketplaceService is the engine surface the HTTP layer calls.
// *marketplace.Service implements it.
type MarketplaceService interface {
	CreateAdvertisement(ctx context.Context, actor models.Principal, in models.NewAdvertisement) (*models.Advertisement, error)
	GetAdvertisement(ctx context.Context, id uuid.UUID) (*models.Advertisement, error)
	ListAdvertisements(ctx context.Context, filter models.AdvertisementFilter) ([]models.Advertisement, error)
	UpdateAdvertisement(ctx context.Context, actor models.Principal, adID uuid.UUID, upd models.AdvertisementUpdate) (*models.Advertisement, error)

	Assign(ctx context.Context, actor models.Principal, adID, contractorID uuid.UUID) (*models.Advertisement, error)
	MarkContractorDone(ctx context.Context, actor models.Principal, adID uuid.UUID) (*models.Advertisement, error)
	ConfirmDone(ctx context.Context, actor models.Principal, adID uuid.UUID) (*models.Advertisement, error)
	Cancel(ctx context.Context, actor models.Principal, adID uuid.UUID) (*models.Advertisement, error)

	PlaceBid(ctx context.Context, actor models.Principal, adID uuid.UUID) (*models.Bid, error)
	ListBidsForAdvertisement(ctx context.Context, actor models.Principal, adID uuid.UUID) ([]models.Bid, error)
	ListBidsForPrincipal(ctx context.Context, actor models.Principal) ([]models.Bid, error)

	Rate(ctx context.Context, actor models.Principal, adID uuid.UUID, in models.NewComment) (*models.Comment, error)
	ListComments(ctx context.Context, filter models.CommentFilter) ([]models.Comment, error)

	ListContractorStats(ctx context.Context, filter models.ContractorStatsFilter) ([]models.ContractorStats, error)
	ContractorProfile(ctx context.Context, contractorID uuid.UUID) (*models.ContractorProfile, error)
	ContractorSchedule(ctx context.Context, actor models.Principal, date *time.Time) ([]models.Advertisement, error)
}
