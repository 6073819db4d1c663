package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vitorbmulford/bsf-api/pkg/enums"
)

// Product represents the canonical catalog listing.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string              `gorm:"column:name;not null"`
	Price       decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	PromoPrice  *decimal.Decimal    `gorm:"column:promo_price;type:numeric(10,2)"`
	Description string              `gorm:"column:description;not null"`
	ImageURL    string              `gorm:"column:image_url;not null"`
	Stock       int                 `gorm:"column:stock;not null;default:0"`
	Category    *string             `gorm:"column:category"`
	Status      enums.ProductStatus `gorm:"column:status;not null;default:'active'"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePrice returns the promotional price when one is set.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.PromoPrice != nil {
		return *p.PromoPrice
	}
	return p.Price
}

// BeforeCreate assigns an id when the driver has no uuid default (sqlite).
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
