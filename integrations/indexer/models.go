package indexer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reflectledger/core/types"
)

// EventRecord is one persisted ledger event. Seq is assigned in emission
// order and is unique per database.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
	Accounts   []EventAccount `gorm:"foreignKey:EventID"`
}

// EventAccount links an event to every account named in its attributes.
type EventAccount struct {
	ID      uint      `gorm:"primaryKey"`
	EventID uuid.UUID `gorm:"type:uuid;index"`
	Account string    `gorm:"size:128;index"`
	Role    string    `gorm:"size:32"`
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &EventAccount{})
}

// Event decodes the stored attributes.
func (r EventRecord) Event() (*types.Event, error) {
	attrs := make(map[string]string)
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, err
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}
