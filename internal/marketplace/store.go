package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/models"
)

// Tx is the view of the store inside one serialized unit of work.
// Implementations must hold the advertisement row returned by
// LockAdvertisement, and the contractor locked by LockContractor, until the
// unit of work ends.
type Tx interface {
	LockAdvertisement(ctx context.Context, id uuid.UUID) (*models.Advertisement, bool, error)
	LockContractor(ctx context.Context, contractorID uuid.UUID) error
	SaveAdvertisement(ctx context.Context, ad *models.Advertisement) error

	HasBid(ctx context.Context, adID, contractorID uuid.UUID) (bool, error)
	// InsertBid returns false when the (advertisement, contractor) pair already has a bid.
	InsertBid(ctx context.Context, bid *models.Bid) (bool, error)

	// CommittedAdvertisements returns the contractor's open or assigned
	// advertisements that have an execution time.
	CommittedAdvertisements(ctx context.Context, contractorID uuid.UUID) ([]models.Advertisement, error)

	// InsertComment returns false when the advertisement already has a comment.
	InsertComment(ctx context.Context, c *models.Comment) (bool, error)
}

// Store persists advertisements, bids and comments.
type Store interface {
	// InTx runs fn in one transaction; fn's error rolls everything back.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	CreateAdvertisement(ctx context.Context, ad *models.Advertisement) error
	GetAdvertisement(ctx context.Context, id uuid.UUID) (*models.Advertisement, bool, error)
	ListAdvertisements(ctx context.Context, filter models.AdvertisementFilter) ([]models.Advertisement, error)
	ListSchedule(ctx context.Context, contractorID uuid.UUID, date *time.Time) ([]models.Advertisement, error)
	CountDone(ctx context.Context, contractorID uuid.UUID) (int, error)

	HasBid(ctx context.Context, adID, contractorID uuid.UUID) (bool, error)
	ListBidsForAdvertisement(ctx context.Context, adID uuid.UUID) ([]models.Bid, error)
	ListBidsForContractor(ctx context.Context, contractorID uuid.UUID) ([]models.Bid, error)
	ListBidsForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Bid, error)

	ListComments(ctx context.Context, filter models.CommentFilter) ([]models.Comment, error)
	ListContractorStats(ctx context.Context, filter models.ContractorStatsFilter) ([]models.ContractorStats, error)
	GetContractorStats(ctx context.Context, contractorID uuid.UUID) (models.ContractorStats, error)
}

// StatsCache caches contractor discovery results. GetStats reports the cache
// generation it observed; SetStats must be given that generation so results
// read before an Invalidate never become visible after it.
type StatsCache interface {
	GetStats(ctx context.Context, filter models.ContractorStatsFilter) ([]models.ContractorStats, int64, bool)
	SetStats(ctx context.Context, generation int64, filter models.ContractorStatsFilter, stats []models.ContractorStats)
	Invalidate(ctx context.Context)
}
