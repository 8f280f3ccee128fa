package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/MoeeinAali/CE419-WP/internal/marketplace"
	"github.com/MoeeinAali/CE419-WP/models"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newAd(owner uuid.UUID, created time.Time, exec *time.Time) *models.Advertisement {
	return &models.Advertisement{
		ID:            uuid.New(),
		Title:         "Fix sink",
		Description:   "Kitchen sink leaks",
		Category:      "plumbing",
		Status:        models.AdOpen,
		OwnerID:       owner,
		ExecutionTime: exec,
		Completion:    models.CompletionPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func at(t time.Time) *time.Time { return &t }

var errTaken = errors.New("taken")

// concurrently runs n units of work against s at once and counts the ones
// that committed.
func concurrently(s marketplace.Store, n int, fn func(ctx context.Context, tx marketplace.Tx, i int) error) (int, []error) {
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ctx := context.Background()
			errs[i] = s.InTx(ctx, func(tx marketplace.Tx) error {
				return fn(ctx, tx, i)
			})
		}(i)
	}
	close(start)
	wg.Wait()
	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
		}
	}
	return committed, errs
}

// testStore runs the behaviour every marketplace.Store must share.
func testStore(t *testing.T, newStore func(t *testing.T) marketplace.Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ad := newAd(uuid.New(), base, at(base.Add(24*time.Hour)))
		require.NoError(t, s.CreateAdvertisement(ctx, ad))

		got, found, err := s.GetAdvertisement(ctx, ad.ID)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, ad.Title, got.Title)
		require.Equal(t, models.AdOpen, got.Status)
		require.True(t, ad.ExecutionTime.Equal(*got.ExecutionTime))

		_, found, err = s.GetAdvertisement(ctx, uuid.New())
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("list newest first with filters", func(t *testing.T) {
		s := newStore(t)
		owner := uuid.New()
		first := newAd(owner, base, at(base.Add(2*time.Hour)))
		second := newAd(owner, base.Add(time.Minute), at(base.Add(26*time.Hour)))
		other := newAd(uuid.New(), base.Add(2*time.Minute), nil)
		for _, ad := range []*models.Advertisement{first, second, other} {
			require.NoError(t, s.CreateAdvertisement(ctx, ad))
		}

		ads, err := s.ListAdvertisements(ctx, models.AdvertisementFilter{OwnerID: &owner})
		require.NoError(t, err)
		require.Len(t, ads, 2)
		require.Equal(t, second.ID, ads[0].ID)
		require.Equal(t, first.ID, ads[1].ID)

		day := base
		ads, err = s.ListAdvertisements(ctx, models.AdvertisementFilter{ExecutionDate: &day})
		require.NoError(t, err)
		require.Len(t, ads, 1)
		require.Equal(t, first.ID, ads[0].ID)

		ads, err = s.ListAdvertisements(ctx, models.AdvertisementFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, ads, 1)
		require.Equal(t, second.ID, ads[0].ID)
	})

	t.Run("tx commits saved advertisement", func(t *testing.T) {
		s := newStore(t)
		contractor := uuid.New()
		ad := newAd(uuid.New(), base, at(base.Add(3*time.Hour)))
		require.NoError(t, s.CreateAdvertisement(ctx, ad))

		err := s.InTx(ctx, func(tx marketplace.Tx) error {
			locked, found, err := tx.LockAdvertisement(ctx, ad.ID)
			require.NoError(t, err)
			require.True(t, found)
			require.NoError(t, tx.LockContractor(ctx, contractor))
			locked.Status = models.AdAssigned
			locked.AssignedContractorID = &contractor
			return tx.SaveAdvertisement(ctx, locked)
		})
		require.NoError(t, err)

		got, _, err := s.GetAdvertisement(ctx, ad.ID)
		require.NoError(t, err)
		require.Equal(t, models.AdAssigned, got.Status)
		require.True(t, got.IsAssignedTo(contractor))

		schedule, err := s.ListSchedule(ctx, contractor, nil)
		require.NoError(t, err)
		require.Len(t, schedule, 1)
	})

	t.Run("tx error rolls back", func(t *testing.T) {
		s := newStore(t)
		ad := newAd(uuid.New(), base, nil)
		require.NoError(t, s.CreateAdvertisement(ctx, ad))
		boom := errors.New("boom")

		err := s.InTx(ctx, func(tx marketplace.Tx) error {
			locked, _, err := tx.LockAdvertisement(ctx, ad.ID)
			require.NoError(t, err)
			locked.Status = models.AdCancelled
			require.NoError(t, tx.SaveAdvertisement(ctx, locked))
			inserted, err := tx.InsertBid(ctx, &models.Bid{
				ID: uuid.New(), AdvertisementID: ad.ID, ContractorID: uuid.New(), CreatedAt: base,
			})
			require.NoError(t, err)
			require.True(t, inserted)
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, _, err := s.GetAdvertisement(ctx, ad.ID)
		require.NoError(t, err)
		require.Equal(t, models.AdOpen, got.Status)
		bids, err := s.ListBidsForAdvertisement(ctx, ad.ID)
		require.NoError(t, err)
		require.Empty(t, bids)
	})

	t.Run("bid uniqueness and order", func(t *testing.T) {
		s := newStore(t)
		owner := uuid.New()
		ad := newAd(owner, base, nil)
		require.NoError(t, s.CreateAdvertisement(ctx, ad))
		c1, c2 := uuid.New(), uuid.New()

		err := s.InTx(ctx, func(tx marketplace.Tx) error {
			for _, c := range []uuid.UUID{c1, c2} {
				inserted, err := tx.InsertBid(ctx, &models.Bid{
					ID: uuid.New(), AdvertisementID: ad.ID, ContractorID: c, CreatedAt: base,
				})
				require.NoError(t, err)
				require.True(t, inserted)
			}
			inserted, err := tx.InsertBid(ctx, &models.Bid{
				ID: uuid.New(), AdvertisementID: ad.ID, ContractorID: c1, CreatedAt: base,
			})
			require.NoError(t, err)
			require.False(t, inserted)
			return nil
		})
		require.NoError(t, err)

		bids, err := s.ListBidsForAdvertisement(ctx, ad.ID)
		require.NoError(t, err)
		require.Len(t, bids, 2)
		require.Equal(t, c1, bids[0].ContractorID)
		require.Equal(t, c2, bids[1].ContractorID)

		ok, err := s.HasBid(ctx, ad.ID, c2)
		require.NoError(t, err)
		require.True(t, ok)

		mine, err := s.ListBidsForContractor(ctx, c1)
		require.NoError(t, err)
		require.Len(t, mine, 1)

		owned, err := s.ListBidsForOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, owned, 2)
	})

	t.Run("comments and stats", func(t *testing.T) {
		s := newStore(t)
		good, busy := uuid.New(), uuid.New()
		rate := func(contractor uuid.UUID, score int, created time.Time) bool {
			ad := newAd(uuid.New(), created, nil)
			require.NoError(t, s.CreateAdvertisement(ctx, ad))
			var inserted bool
			require.NoError(t, s.InTx(ctx, func(tx marketplace.Tx) error {
				var err error
				inserted, err = tx.InsertComment(ctx, &models.Comment{
					ID: uuid.New(), AdvertisementID: ad.ID, AuthorID: ad.OwnerID,
					ContractorID: contractor, Score: score, CreatedAt: created,
				})
				if err != nil {
					return err
				}
				again, err := tx.InsertComment(ctx, &models.Comment{
					ID: uuid.New(), AdvertisementID: ad.ID, AuthorID: ad.OwnerID,
					ContractorID: contractor, Score: score, CreatedAt: created,
				})
				require.False(t, again)
				return err
			}))
			return inserted
		}
		require.True(t, rate(good, 5, base))
		require.True(t, rate(busy, 3, base.Add(time.Minute)))
		require.True(t, rate(busy, 4, base.Add(2*time.Minute)))
		require.True(t, rate(busy, 2, base.Add(3*time.Minute)))

		stats, err := s.ListContractorStats(ctx, models.ContractorStatsFilter{SortBy: models.SortByScore})
		require.NoError(t, err)
		require.Len(t, stats, 2)
		require.Equal(t, good, stats[0].ContractorID)
		require.InDelta(t, 5.0, stats[0].AvgScore, 0.001)

		stats, err = s.ListContractorStats(ctx, models.ContractorStatsFilter{SortBy: models.SortByCount})
		require.NoError(t, err)
		require.Equal(t, busy, stats[0].ContractorID)
		require.Equal(t, 3, stats[0].RatingCount)
		require.InDelta(t, 3.0, stats[0].AvgScore, 0.001)

		minCount := 2
		stats, err = s.ListContractorStats(ctx, models.ContractorStatsFilter{MinCount: &minCount})
		require.NoError(t, err)
		require.Len(t, stats, 1)

		minScore := 4.5
		stats, err = s.ListContractorStats(ctx, models.ContractorStatsFilter{MinScore: &minScore})
		require.NoError(t, err)
		require.Len(t, stats, 1)
		require.Equal(t, good, stats[0].ContractorID)

		one, err := s.GetContractorStats(ctx, busy)
		require.NoError(t, err)
		require.Equal(t, 3, one.RatingCount)

		none, err := s.GetContractorStats(ctx, uuid.New())
		require.NoError(t, err)
		require.Zero(t, none.RatingCount)

		comments, err := s.ListComments(ctx, models.CommentFilter{ContractorID: &busy})
		require.NoError(t, err)
		require.Len(t, comments, 3)
		require.Equal(t, 2, comments[0].Score)

		low := 3
		comments, err = s.ListComments(ctx, models.CommentFilter{MaxScore: &low})
		require.NoError(t, err)
		require.Len(t, comments, 2)
	})

	t.Run("committed advertisements", func(t *testing.T) {
		s := newStore(t)
		contractor := uuid.New()
		assigned := newAd(uuid.New(), base, at(base.Add(time.Hour)))
		assigned.Status = models.AdAssigned
		assigned.AssignedContractorID = &contractor
		done := newAd(uuid.New(), base, at(base.Add(time.Hour)))
		done.Status = models.AdDone
		done.AssignedContractorID = &contractor
		unscheduled := newAd(uuid.New(), base, nil)
		unscheduled.Status = models.AdAssigned
		unscheduled.AssignedContractorID = &contractor
		for _, ad := range []*models.Advertisement{assigned, done, unscheduled} {
			require.NoError(t, s.CreateAdvertisement(ctx, ad))
		}

		require.NoError(t, s.InTx(ctx, func(tx marketplace.Tx) error {
			ads, err := tx.CommittedAdvertisements(ctx, contractor)
			require.NoError(t, err)
			require.Len(t, ads, 1)
			require.Equal(t, assigned.ID, ads[0].ID)
			return nil
		}))

		n, err := s.CountDone(ctx, contractor)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("advertisement lock serializes writers", func(t *testing.T) {
		s := newStore(t)
		ad := newAd(uuid.New(), base, at(base.Add(time.Hour)))
		require.NoError(t, s.CreateAdvertisement(ctx, ad))
		contractors := make([]uuid.UUID, 6)
		for i := range contractors {
			contractors[i] = uuid.New()
		}

		committed, errs := concurrently(s, len(contractors), func(ctx context.Context, tx marketplace.Tx, i int) error {
			locked, found, err := tx.LockAdvertisement(ctx, ad.ID)
			if err != nil {
				return err
			}
			if !found || locked.Status != models.AdOpen {
				return errTaken
			}
			locked.Status = models.AdAssigned
			locked.AssignedContractorID = &contractors[i]
			return tx.SaveAdvertisement(ctx, locked)
		})
		require.Equal(t, 1, committed)
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, errTaken)
			}
		}

		got, _, err := s.GetAdvertisement(ctx, ad.ID)
		require.NoError(t, err)
		require.Equal(t, models.AdAssigned, got.Status)
	})

	t.Run("concurrent bid inserts keep one row", func(t *testing.T) {
		s := newStore(t)
		ad := newAd(uuid.New(), base, nil)
		require.NoError(t, s.CreateAdvertisement(ctx, ad))
		contractor := uuid.New()

		var mu sync.Mutex
		inserts := 0
		committed, errs := concurrently(s, 6, func(ctx context.Context, tx marketplace.Tx, _ int) error {
			inserted, err := tx.InsertBid(ctx, &models.Bid{
				ID: uuid.New(), AdvertisementID: ad.ID, ContractorID: contractor, CreatedAt: base,
			})
			if err != nil {
				return err
			}
			if inserted {
				mu.Lock()
				inserts++
				mu.Unlock()
			}
			return nil
		})
		for _, err := range errs {
			require.NoError(t, err)
		}
		require.Equal(t, 6, committed)
		require.Equal(t, 1, inserts)

		bids, err := s.ListBidsForAdvertisement(ctx, ad.ID)
		require.NoError(t, err)
		require.Len(t, bids, 1)
	})

	t.Run("contractor lock serializes schedule checks", func(t *testing.T) {
		s := newStore(t)
		contractor := uuid.New()
		ads := []*models.Advertisement{
			newAd(uuid.New(), base, at(base.Add(time.Hour))),
			newAd(uuid.New(), base, at(base.Add(2*time.Hour))),
		}
		for _, ad := range ads {
			require.NoError(t, s.CreateAdvertisement(ctx, ad))
		}

		committed, errs := concurrently(s, len(ads), func(ctx context.Context, tx marketplace.Tx, i int) error {
			locked, _, err := tx.LockAdvertisement(ctx, ads[i].ID)
			if err != nil {
				return err
			}
			if err := tx.LockContractor(ctx, contractor); err != nil {
				return err
			}
			busy, err := tx.CommittedAdvertisements(ctx, contractor)
			if err != nil {
				return err
			}
			if len(busy) > 0 {
				return errTaken
			}
			locked.Status = models.AdAssigned
			locked.AssignedContractorID = &contractor
			return tx.SaveAdvertisement(ctx, locked)
		})
		require.Equal(t, 1, committed)
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, errTaken)
			}
		}

		schedule, err := s.ListSchedule(ctx, contractor, nil)
		require.NoError(t, err)
		require.Len(t, schedule, 1)
	})
}
