// Package adapters はcandlesフィーチャーのリポジトリとソースの実装を提供します。
package adapters

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/usecase"
)

type candleStore struct {
	db *gorm.DB
}

var _ usecase.CandleRepository = (*candleStore)(nil)

// NewCandleRepository はgormで永続化するCandleRepositoryを生成します（SQLite/PostgreSQL）。
func NewCandleRepository(db *gorm.DB) *candleStore {
	return &candleStore{db: db}
}

// CandleModel はフィードのローソク足1本を表すテーブル行です。
// intervalはPostgreSQLの予約語のためtimeframe列に保存します。
type CandleModel struct {
	ID       uint   `gorm:"primaryKey"`
	Symbol   string `gorm:"size:32;not null;uniqueIndex:candle_sym_tf_time,priority:1"`
	Interval string `gorm:"column:timeframe;size:16;not null;uniqueIndex:candle_sym_tf_time,priority:2"`
	Time     int64  `gorm:"not null;uniqueIndex:candle_sym_tf_time,priority:3"`

	Open   float64  `gorm:"not null"`
	High   float64  `gorm:"not null"`
	Low    float64  `gorm:"not null"`
	Close  float64  `gorm:"not null"`
	Volume *float64 // 出来高がない足はNULL
}

func (CandleModel) TableName() string {
	return "candles"
}

func toModel(symbol, interval string, e entity.Candle) CandleModel {
	return CandleModel{
		Symbol:   symbol,
		Interval: interval,
		Time:     e.Time,
		Open:     e.Open,
		High:     e.High,
		Low:      e.Low,
		Close:    e.Close,
		Volume:   e.Volume,
	}
}

func (m CandleModel) toEntity() entity.Candle {
	return entity.Candle{
		Time:   m.Time,
		Open:   m.Open,
		High:   m.High,
		Low:    m.Low,
		Close:  m.Close,
		Volume: m.Volume,
	}
}

func (r *candleStore) UpsertBatch(ctx context.Context, symbol, interval string, candles []entity.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	ms := make([]CandleModel, 0, len(candles))
	for _, e := range candles {
		ms = append(ms, toModel(symbol, interval, e))
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "time"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).Create(&ms).Error
}

// Find は新しい順に最大limit件を返します。limit <= 0 は全件です。
func (r *candleStore) Find(ctx context.Context, symbol, interval string, limit int) ([]entity.Candle, error) {
	var rows []CandleModel
	q := r.db.WithContext(ctx).
		Where(&CandleModel{Symbol: symbol, Interval: interval}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "time"}, Desc: true})
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Candle, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toEntity())
	}
	return out, nil
}
