package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/MoeeinAali/CE419-WP/internal/marketplace"
	"github.com/MoeeinAali/CE419-WP/models"
)

// Storage is the PostgreSQL implementation of marketplace.Store.
type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

const adColumns = `id, title, description, category, status, owner_id, assigned_contractor_id,
        execution_time, location, completion, created_at, updated_at`

const bidColumns = `id, advertisement_id, contractor_id, created_at`

const commentColumns = `id, advertisement_id, author_id, contractor_id, score, text, created_at`

// dayBounds returns [start, end) of t's UTC calendar day.
func dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func pageClause(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}
	return b.String()
}

func (s *Storage) InTx(ctx context.Context, fn func(tx marketplace.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		if cerr := sqlTx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()
	return fn(&storageTx{tx: sqlTx})
}

func (s *Storage) CreateAdvertisement(ctx context.Context, ad *models.Advertisement) error {
	query := `
        INSERT INTO advertisements
            (` + adColumns + `)
        VALUES
            (:id, :title, :description, :category, :status, :owner_id, :assigned_contractor_id,
             :execution_time, :location, :completion, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, query, ad)
	return err
}

func (s *Storage) GetAdvertisement(ctx context.Context, id uuid.UUID) (*models.Advertisement, bool, error) {
	ad := &models.Advertisement{}
	query := `SELECT ` + adColumns + ` FROM advertisements WHERE id=$1`
	err := s.db.GetContext(ctx, ad, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ad, true, nil
}

func (s *Storage) ListAdvertisements(ctx context.Context, f models.AdvertisementFilter) ([]models.Advertisement, error) {
	w := &where{}
	if f.OwnerID != nil {
		w.add("owner_id = ?", *f.OwnerID)
	}
	if f.AssignedContractorID != nil {
		w.add("assigned_contractor_id = ?", *f.AssignedContractorID)
	}
	if f.Status != nil {
		w.add("status = ?", *f.Status)
	}
	if f.ExecutionDate != nil {
		start, end := dayBounds(*f.ExecutionDate)
		w.add("execution_time >= ? AND execution_time < ?", start, end)
	}
	query := `SELECT ` + adColumns + ` FROM advertisements` + w.String() +
		` ORDER BY created_at DESC, seq DESC` + pageClause(f.Limit, f.Offset)

	ads := []models.Advertisement{}
	if err := s.db.SelectContext(ctx, &ads, query, w.args...); err != nil {
		return nil, err
	}
	return ads, nil
}

func (s *Storage) ListSchedule(ctx context.Context, contractorID uuid.UUID, date *time.Time) ([]models.Advertisement, error) {
	w := &where{}
	w.add("status = ?", models.AdAssigned)
	w.add("assigned_contractor_id = ?", contractorID)
	w.add("execution_time IS NOT NULL")
	if date != nil {
		start, end := dayBounds(*date)
		w.add("execution_time >= ? AND execution_time < ?", start, end)
	}
	query := `SELECT ` + adColumns + ` FROM advertisements` + w.String() + ` ORDER BY execution_time ASC`

	ads := []models.Advertisement{}
	if err := s.db.SelectContext(ctx, &ads, query, w.args...); err != nil {
		return nil, err
	}
	return ads, nil
}

func (s *Storage) CountDone(ctx context.Context, contractorID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(1) FROM advertisements WHERE status=$1 AND assigned_contractor_id=$2`
	err := s.db.GetContext(ctx, &count, query, models.AdDone, contractorID)
	return count, err
}

func (s *Storage) HasBid(ctx context.Context, adID, contractorID uuid.UUID) (bool, error) {
	return hasBidQuery(ctx, s.db, adID, contractorID)
}

func hasBidQuery(ctx context.Context, q sqlx.QueryerContext, adID, contractorID uuid.UUID) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM bids WHERE advertisement_id=$1 AND contractor_id=$2`
	if err := sqlx.GetContext(ctx, q, &count, query, adID, contractorID); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Storage) ListBidsForAdvertisement(ctx context.Context, adID uuid.UUID) ([]models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE advertisement_id=$1 ORDER BY created_at ASC, seq ASC`
	bids := []models.Bid{}
	err := s.db.SelectContext(ctx, &bids, query, adID)
	return bids, err
}

func (s *Storage) ListBidsForContractor(ctx context.Context, contractorID uuid.UUID) ([]models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE contractor_id=$1 ORDER BY created_at ASC, seq ASC`
	bids := []models.Bid{}
	err := s.db.SelectContext(ctx, &bids, query, contractorID)
	return bids, err
}

func (s *Storage) ListBidsForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Bid, error) {
	query := `
        SELECT b.id, b.advertisement_id, b.contractor_id, b.created_at
        FROM bids b
        JOIN advertisements a ON a.id = b.advertisement_id
        WHERE a.owner_id = $1
        ORDER BY b.created_at ASC, b.seq ASC`
	bids := []models.Bid{}
	err := s.db.SelectContext(ctx, &bids, query, ownerID)
	return bids, err
}

func (s *Storage) ListComments(ctx context.Context, f models.CommentFilter) ([]models.Comment, error) {
	w := &where{}
	if f.ContractorID != nil {
		w.add("contractor_id = ?", *f.ContractorID)
	}
	if f.MinScore != nil {
		w.add("score >= ?", *f.MinScore)
	}
	if f.MaxScore != nil {
		w.add("score <= ?", *f.MaxScore)
	}
	query := `SELECT ` + commentColumns + ` FROM comments` + w.String() +
		` ORDER BY created_at DESC, seq DESC` + pageClause(f.Limit, f.Offset)

	comments := []models.Comment{}
	if err := s.db.SelectContext(ctx, &comments, query, w.args...); err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *Storage) ListContractorStats(ctx context.Context, f models.ContractorStatsFilter) ([]models.ContractorStats, error) {
	having := &where{}
	if f.MinScore != nil {
		having.add("AVG(score) >= ?", *f.MinScore)
	}
	if f.MinCount != nil {
		having.add("COUNT(*) >= ?", *f.MinCount)
	}
	havingClause := ""
	if len(having.conds) > 0 {
		havingClause = " HAVING " + strings.Join(having.conds, " AND ")
	}
	order := "avg_score DESC"
	if f.SortBy == models.SortByCount {
		order = "rating_count DESC"
	}
	query := `
        SELECT contractor_id, AVG(score)::float8 AS avg_score, COUNT(*) AS rating_count
        FROM comments
        GROUP BY contractor_id` + havingClause +
		` ORDER BY ` + order + `, contractor_id ASC` + pageClause(f.Limit, f.Offset)

	stats := []models.ContractorStats{}
	if err := s.db.SelectContext(ctx, &stats, query, having.args...); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Storage) GetContractorStats(ctx context.Context, contractorID uuid.UUID) (models.ContractorStats, error) {
	stats := models.ContractorStats{ContractorID: contractorID}
	query := `
        SELECT COALESCE(AVG(score), 0)::float8, COUNT(*)
        FROM comments
        WHERE contractor_id = $1`
	err := s.db.QueryRowContext(ctx, query, contractorID).Scan(&stats.AvgScore, &stats.RatingCount)
	return stats, err
}

// storageTx implements marketplace.Tx on one database transaction.
type storageTx struct {
	tx *sqlx.Tx
}

func (t *storageTx) LockAdvertisement(ctx context.Context, id uuid.UUID) (*models.Advertisement, bool, error) {
	ad := &models.Advertisement{}
	query := `SELECT ` + adColumns + ` FROM advertisements WHERE id=$1 FOR UPDATE`
	err := t.tx.GetContext(ctx, ad, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ad, true, nil
}

// LockContractor serializes schedule checks for one contractor until the
// transaction ends.
func (t *storageTx) LockContractor(ctx context.Context, contractorID uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "contractor:"+contractorID.String())
	return err
}

func (t *storageTx) SaveAdvertisement(ctx context.Context, ad *models.Advertisement) error {
	query := `
        UPDATE advertisements
        SET title=:title, description=:description, category=:category, status=:status,
            assigned_contractor_id=:assigned_contractor_id, execution_time=:execution_time,
            location=:location, completion=:completion, updated_at=:updated_at
        WHERE id=:id`
	_, err := t.tx.NamedExecContext(ctx, query, ad)
	return err
}

func (t *storageTx) HasBid(ctx context.Context, adID, contractorID uuid.UUID) (bool, error) {
	return hasBidQuery(ctx, t.tx, adID, contractorID)
}

func (t *storageTx) InsertBid(ctx context.Context, bid *models.Bid) (bool, error) {
	query := `
        INSERT INTO bids (` + bidColumns + `)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (advertisement_id, contractor_id) DO NOTHING`
	res, err := t.tx.ExecContext(ctx, query, bid.ID, bid.AdvertisementID, bid.ContractorID, bid.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *storageTx) CommittedAdvertisements(ctx context.Context, contractorID uuid.UUID) ([]models.Advertisement, error) {
	query := `
        SELECT ` + adColumns + `
        FROM advertisements
        WHERE assigned_contractor_id = $1
          AND execution_time IS NOT NULL
          AND status = ANY($2)`
	active := pq.Array([]string{string(models.AdOpen), string(models.AdAssigned)})
	ads := []models.Advertisement{}
	err := t.tx.SelectContext(ctx, &ads, query, contractorID, active)
	return ads, err
}

func (t *storageTx) InsertComment(ctx context.Context, c *models.Comment) (bool, error) {
	query := `
        INSERT INTO comments (` + commentColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (advertisement_id) DO NOTHING`
	res, err := t.tx.ExecContext(ctx, query,
		c.ID, c.AdvertisementID, c.AuthorID, c.ContractorID, c.Score, c.Text, c.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
