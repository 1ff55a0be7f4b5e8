// Package fees stores fee transactions.
package fees

import (
	"errors"

	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

var ErrNotFound = errors.New("fee not found")

// Filter narrows fee listings. Zero values match everything.
type Filter struct {
	Status entities.FeeStatus
	UserID uint
	Type   entities.FeeType
}

// Total aggregates fees of one status.
type Total struct {
	Status      entities.FeeStatus `json:"status"`
	Count       int64              `json:"count"`
	AmountCents int64              `json:"amount_cents"`
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(fee *entities.FeeTransaction) error {
	return r.db.Omit("User").Create(fee).Error
}

func (r *Repository) GetByID(id uint) (*entities.FeeTransaction, error) {
	var fee entities.FeeTransaction
	if err := r.db.Preload("User").First(&fee, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &fee, nil
}

// UpdateStatus moves a fee out of fromStatus. It returns false when the fee
// is no longer in fromStatus.
func (r *Repository) UpdateStatus(fee *entities.FeeTransaction, fromStatus entities.FeeStatus) (bool, error) {
	result := r.db.Model(&entities.FeeTransaction{}).
		Where("id = ? AND status = ?", fee.ID, fromStatus).
		Updates(map[string]any{
			"status":      fee.Status,
			"paid_at":     fee.PaidAt,
			"description": fee.Description,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) List(f Filter, limit, offset int) ([]entities.FeeTransaction, int64, error) {
	var list []entities.FeeTransaction
	var total int64

	query := r.db.Model(&entities.FeeTransaction{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.UserID != 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	err := query.Preload("User").Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// ListForUser returns every fee charged to a user, newest first.
func (r *Repository) ListForUser(userID uint) ([]entities.FeeTransaction, error) {
	var list []entities.FeeTransaction
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

// Totals returns count and sum per status. Statuses without fees are zero.
func (r *Repository) Totals(userID uint) (map[entities.FeeStatus]Total, error) {
	var rows []Total
	query := r.db.Model(&entities.FeeTransaction{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS amount_cents")
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := map[entities.FeeStatus]Total{}
	for _, s := range []entities.FeeStatus{entities.FeeStatusPending, entities.FeeStatusPaid, entities.FeeStatusWaived} {
		out[s] = Total{Status: s}
	}
	for _, row := range rows {
		out[row.Status] = row
	}
	return out, nil
}
