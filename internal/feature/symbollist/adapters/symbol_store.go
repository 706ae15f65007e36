// Package adapters はsymbollistフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chart_backend/internal/feature/symbollist/domain/entity"
	"chart_backend/internal/feature/symbollist/usecase"
)

// symbolStore はSymbolRepositoryインターフェースのGORM実装です。
type symbolStore struct {
	db *gorm.DB
}

var _ usecase.SymbolRepository = (*symbolStore)(nil)

// NewSymbolRepository は指定されたDB接続でsymbolStoreの新しいインスタンスを生成します。
func NewSymbolRepository(db *gorm.DB) *symbolStore {
	return &symbolStore{db: db}
}

// ListActive はsort_key順にすべてのアクティブな銘柄を返します。
func (r *symbolStore) ListActive(ctx context.Context) ([]entity.Symbol, error) {
	var symbols []entity.Symbol
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_key ASC").
		Find(&symbols).Error; err != nil {
		return nil, err
	}
	return symbols, nil
}

// ListActiveCodes はsort_key順にアクティブな銘柄のコードのみを返します。
// sourceが空でなければそのフィードの銘柄に絞り込みます。
func (r *symbolStore) ListActiveCodes(ctx context.Context, source string) ([]string, error) {
	q := r.db.WithContext(ctx).
		Model(&entity.Symbol{}).
		Where("is_active = ?", true)
	if source != "" {
		q = q.Where("source = ?", source)
	}

	var codes []string
	if err := q.Order("sort_key ASC").Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// Upsert はcodeをキーに銘柄を登録または更新します。
func (r *symbolStore) Upsert(ctx context.Context, symbols []entity.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "source", "is_active", "sort_key", "updated_at"}),
		}).
		Create(&symbols).Error
}
