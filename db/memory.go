package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MoeeinAali/CE419-WP/internal/marketplace"
	"github.com/MoeeinAali/CE419-WP/models"
)

// MemoryStorage keeps everything in process. Transactions are serialized by
// one mutex and buffer their writes until commit.
type MemoryStorage struct {
	mu       sync.Mutex
	ads      map[uuid.UUID]models.Advertisement
	adSeq    map[uuid.UUID]int64
	bids     []models.Bid
	comments []models.Comment
	nextSeq  int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		ads:   make(map[uuid.UUID]models.Advertisement),
		adSeq: make(map[uuid.UUID]int64),
	}
}

func cloneAd(ad models.Advertisement) models.Advertisement {
	if ad.AssignedContractorID != nil {
		c := *ad.AssignedContractorID
		ad.AssignedContractorID = &c
	}
	if ad.ExecutionTime != nil {
		t := *ad.ExecutionTime
		ad.ExecutionTime = &t
	}
	if ad.Location != nil {
		l := *ad.Location
		ad.Location = &l
	}
	return ad
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (m *MemoryStorage) InTx(ctx context.Context, fn func(tx marketplace.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{m: m, ads: make(map[uuid.UUID]models.Advertisement)}
	if err := fn(tx); err != nil {
		return err
	}
	for id, ad := range tx.ads {
		m.ads[id] = ad
	}
	m.bids = append(m.bids, tx.bids...)
	m.comments = append(m.comments, tx.comments...)
	return nil
}

func (m *MemoryStorage) CreateAdvertisement(_ context.Context, ad *models.Advertisement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	m.ads[ad.ID] = cloneAd(*ad)
	m.adSeq[ad.ID] = m.nextSeq
	return nil
}

func (m *MemoryStorage) GetAdvertisement(_ context.Context, id uuid.UUID) (*models.Advertisement, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ad, ok := m.ads[id]
	if !ok {
		return nil, false, nil
	}
	out := cloneAd(ad)
	return &out, true, nil
}

func (m *MemoryStorage) ListAdvertisements(_ context.Context, f models.AdvertisementFilter) ([]models.Advertisement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Advertisement{}
	for _, ad := range m.ads {
		if f.OwnerID != nil && ad.OwnerID != *f.OwnerID {
			continue
		}
		if f.AssignedContractorID != nil && !ad.IsAssignedTo(*f.AssignedContractorID) {
			continue
		}
		if f.Status != nil && ad.Status != *f.Status {
			continue
		}
		if f.ExecutionDate != nil && (ad.ExecutionTime == nil || !sameDay(*ad.ExecutionTime, *f.ExecutionDate)) {
			continue
		}
		out = append(out, cloneAd(ad))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return m.adSeq[out[i].ID] > m.adSeq[out[j].ID]
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *MemoryStorage) ListSchedule(_ context.Context, contractorID uuid.UUID, date *time.Time) ([]models.Advertisement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Advertisement{}
	for _, ad := range m.ads {
		if ad.Status != models.AdAssigned || !ad.IsAssignedTo(contractorID) || ad.ExecutionTime == nil {
			continue
		}
		if date != nil && !sameDay(*ad.ExecutionTime, *date) {
			continue
		}
		out = append(out, cloneAd(ad))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExecutionTime.Before(*out[j].ExecutionTime)
	})
	return out, nil
}

func (m *MemoryStorage) CountDone(_ context.Context, contractorID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ad := range m.ads {
		if ad.Status == models.AdDone && ad.IsAssignedTo(contractorID) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) HasBid(_ context.Context, adID, contractorID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return hasBid(m.bids, adID, contractorID), nil
}

func hasBid(bids []models.Bid, adID, contractorID uuid.UUID) bool {
	for _, b := range bids {
		if b.AdvertisementID == adID && b.ContractorID == contractorID {
			return true
		}
	}
	return false
}

// listBids keeps insertion order for equal timestamps.
func (m *MemoryStorage) listBids(keep func(models.Bid) bool) []models.Bid {
	out := []models.Bid{}
	for _, b := range m.bids {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryStorage) ListBidsForAdvertisement(_ context.Context, adID uuid.UUID) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listBids(func(b models.Bid) bool { return b.AdvertisementID == adID }), nil
}

func (m *MemoryStorage) ListBidsForContractor(_ context.Context, contractorID uuid.UUID) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listBids(func(b models.Bid) bool { return b.ContractorID == contractorID }), nil
}

func (m *MemoryStorage) ListBidsForOwner(_ context.Context, ownerID uuid.UUID) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listBids(func(b models.Bid) bool {
		ad, ok := m.ads[b.AdvertisementID]
		return ok && ad.OwnerID == ownerID
	}), nil
}

func (m *MemoryStorage) ListComments(_ context.Context, f models.CommentFilter) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Comment{}
	// newest first; walking backwards keeps later inserts ahead on equal timestamps
	for i := len(m.comments) - 1; i >= 0; i-- {
		c := m.comments[i]
		if f.ContractorID != nil && c.ContractorID != *f.ContractorID {
			continue
		}
		if f.MinScore != nil && c.Score < *f.MinScore {
			continue
		}
		if f.MaxScore != nil && c.Score > *f.MaxScore {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *MemoryStorage) aggregate() map[uuid.UUID]*models.ContractorStats {
	byContractor := make(map[uuid.UUID]*models.ContractorStats)
	sums := make(map[uuid.UUID]int)
	for _, c := range m.comments {
		st, ok := byContractor[c.ContractorID]
		if !ok {
			st = &models.ContractorStats{ContractorID: c.ContractorID}
			byContractor[c.ContractorID] = st
		}
		st.RatingCount++
		sums[c.ContractorID] += c.Score
	}
	for id, st := range byContractor {
		st.AvgScore = float64(sums[id]) / float64(st.RatingCount)
	}
	return byContractor
}

func (m *MemoryStorage) ListContractorStats(_ context.Context, f models.ContractorStatsFilter) ([]models.ContractorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ContractorStats{}
	for _, st := range m.aggregate() {
		if f.MinScore != nil && st.AvgScore < *f.MinScore {
			continue
		}
		if f.MinCount != nil && st.RatingCount < *f.MinCount {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if f.SortBy == models.SortByCount {
			if a.RatingCount != b.RatingCount {
				return a.RatingCount > b.RatingCount
			}
		} else if a.AvgScore != b.AvgScore {
			return a.AvgScore > b.AvgScore
		}
		return a.ContractorID.String() < b.ContractorID.String()
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func (m *MemoryStorage) GetContractorStats(_ context.Context, contractorID uuid.UUID) (models.ContractorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.aggregate()[contractorID]; ok {
		return *st, nil
	}
	return models.ContractorStats{ContractorID: contractorID}, nil
}

type memoryTx struct {
	m        *MemoryStorage
	ads      map[uuid.UUID]models.Advertisement
	bids     []models.Bid
	comments []models.Comment
}

func (t *memoryTx) current(id uuid.UUID) (models.Advertisement, bool) {
	if ad, ok := t.ads[id]; ok {
		return ad, true
	}
	ad, ok := t.m.ads[id]
	return ad, ok
}

func (t *memoryTx) LockAdvertisement(_ context.Context, id uuid.UUID) (*models.Advertisement, bool, error) {
	ad, ok := t.current(id)
	if !ok {
		return nil, false, nil
	}
	out := cloneAd(ad)
	return &out, true, nil
}

// LockContractor is covered by the store mutex.
func (t *memoryTx) LockContractor(context.Context, uuid.UUID) error { return nil }

func (t *memoryTx) SaveAdvertisement(_ context.Context, ad *models.Advertisement) error {
	t.ads[ad.ID] = cloneAd(*ad)
	return nil
}

func (t *memoryTx) HasBid(_ context.Context, adID, contractorID uuid.UUID) (bool, error) {
	return hasBid(t.m.bids, adID, contractorID) || hasBid(t.bids, adID, contractorID), nil
}

func (t *memoryTx) InsertBid(ctx context.Context, bid *models.Bid) (bool, error) {
	exists, _ := t.HasBid(ctx, bid.AdvertisementID, bid.ContractorID)
	if exists {
		return false, nil
	}
	t.bids = append(t.bids, *bid)
	return true, nil
}

func (t *memoryTx) CommittedAdvertisements(_ context.Context, contractorID uuid.UUID) ([]models.Advertisement, error) {
	out := []models.Advertisement{}
	for id := range t.m.ads {
		ad, _ := t.current(id)
		if !ad.IsAssignedTo(contractorID) || ad.ExecutionTime == nil {
			continue
		}
		if ad.Status != models.AdOpen && ad.Status != models.AdAssigned {
			continue
		}
		out = append(out, cloneAd(ad))
	}
	return out, nil
}

func (t *memoryTx) InsertComment(_ context.Context, c *models.Comment) (bool, error) {
	for _, list := range [][]models.Comment{t.m.comments, t.comments} {
		for _, existing := range list {
			if existing.AdvertisementID == c.AdvertisementID {
				return false, nil
			}
		}
	}
	t.comments = append(t.comments, *c)
	return true, nil
}
