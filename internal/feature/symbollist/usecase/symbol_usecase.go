// Package usecase implements the business logic for the feed symbol catalog.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chart_backend/internal/feature/symbollist/domain/entity"
)

// ErrInvalidSymbol is returned when a catalog entry has no code.
var ErrInvalidSymbol = errors.New("symbol code is required")

// SymbolRepository abstracts the persistence layer for the symbol catalog.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type SymbolRepository interface {
	ListActive(ctx context.Context) ([]entity.Symbol, error)
	ListActiveCodes(ctx context.Context, source string) ([]string, error)
	Upsert(ctx context.Context, symbols []entity.Symbol) error
}

// SymbolSpec is a catalog entry as written in the configuration file.
type SymbolSpec struct {
	Code   string
	Name   string
	Source string
}

// SymbolUsecase provides business logic for symbol operations.
type SymbolUsecase struct {
	repo SymbolRepository
}

// NewSymbolUsecase creates a new SymbolUsecase with the given repository.
func NewSymbolUsecase(r SymbolRepository) *SymbolUsecase {
	return &SymbolUsecase{repo: r}
}

// ListActiveSymbols returns all active symbols from the repository.
func (u *SymbolUsecase) ListActiveSymbols(ctx context.Context) ([]entity.Symbol, error) {
	return u.repo.ListActive(ctx)
}

// ListActiveCodes returns the active codes of one feed source ("" for all).
func (u *SymbolUsecase) ListActiveCodes(ctx context.Context, source string) ([]string, error) {
	return u.repo.ListActiveCodes(ctx, source)
}

// EnsureSymbols registers the configured symbols. The configuration order
// becomes the display order; a repeated code keeps its first position.
func (u *SymbolUsecase) EnsureSymbols(ctx context.Context, specs []SymbolSpec) error {
	seen := make(map[string]struct{}, len(specs))
	symbols := make([]entity.Symbol, 0, len(specs))
	for _, s := range specs {
		code := strings.TrimSpace(s.Code)
		if code == "" {
			return ErrInvalidSymbol
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}

		source := s.Source
		if source == "" {
			source = entity.SourceMock
		}
		if source != entity.SourceMock && source != entity.SourceTwelveData {
			return fmt.Errorf("symbol %s: unknown source %q", code, source)
		}
		name := s.Name
		if name == "" {
			name = code
		}
		symbols = append(symbols, entity.Symbol{
			Code:     code,
			Name:     name,
			Source:   source,
			IsActive: true,
			SortKey:  len(symbols) + 1,
		})
	}
	return u.repo.Upsert(ctx, symbols)
}
