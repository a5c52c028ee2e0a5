package salesindex

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sale is one finalized settlement. Amounts are decimal strings in base
// units so every driver stores them losslessly.
type Sale struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	SettlementID     string    `gorm:"uniqueIndex;not null"`
	Tag              uint64    `gorm:"not null"`
	Collection       string    `gorm:"index:idx_sales_token,priority:1;not null"`
	TokenID          uint32    `gorm:"index:idx_sales_token,priority:2;not null"`
	Seller           string    `gorm:"index;not null"`
	Buyer            string    `gorm:"index;not null"`
	Denom            string    `gorm:"not null"`
	Price            string    `gorm:"not null"`
	Fee              string    `gorm:"not null"`
	Royalty          string    `gorm:"not null"`
	Remainder        string    `gorm:"not null"`
	FeeRecipient     string
	RoyaltyRecipient string
	FundsRecipient   string
	SettledAt        time.Time `gorm:"index"`
	CreatedAt        time.Time
}

// BeforeCreate assigns a random id when none was set.
func (s *Sale) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// AutoMigrate creates or updates the sales schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Sale{})
}
