package repository

import (
	"context"

	"papertrader/src/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JournalRepository appends closed trades to the audit journal. The journal
// is never read back into a portfolio.
type JournalRepository struct {
	db *gorm.DB
}

func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// SaveClosed writes one row per closed position. A position already in the
// journal is left untouched.
func (r *JournalRepository) SaveClosed(ctx context.Context, userID string, closed []model.Position) error {
	if len(closed) == 0 {
		return nil
	}

	records := make([]model.TradeRecord, 0, len(closed))
	for _, p := range closed {
		records = append(records, model.NewTradeRecord(userID, p))
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "position_id"}},
			DoNothing: true,
		}).
		Create(&records).Error
}

// CountByUser returns how many trades the journal holds for userID.
func (r *JournalRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.TradeRecord{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
