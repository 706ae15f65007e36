// Package entity defines the domain models for the symbollist feature.
package entity

import "time"

// Feed sources. A mock symbol is advanced by the feed ticker, a twelvedata
// symbol is loaded by the ingest command.
const (
	SourceMock       = "mock"
	SourceTwelveData = "twelvedata"
)

// Symbol is an entry of the feed catalog served by GET /symbols.
type Symbol struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"size:20;not null;uniqueIndex"`
	Name      string    `gorm:"size:255;not null"`
	Source    string    `gorm:"size:20;not null;default:mock;index"`
	IsActive  bool      `gorm:"not null;default:true"`
	SortKey   int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
