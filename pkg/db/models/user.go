package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitorbmulford/bsf-api/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type         enums.UserType   `gorm:"column:type;not null;default:'customer'"`
	Name         string           `gorm:"column:name;not null"`
	Phone        *string          `gorm:"column:phone"`
	Email        string           `gorm:"column:email;type:text;not null;uniqueIndex:ux_users_email"`
	PasswordHash string           `gorm:"column:password_hash;not null"`
	AvatarURL    *string          `gorm:"column:avatar_url"`
	Status       enums.UserStatus `gorm:"column:status;not null;default:'active'"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns an id when the driver has no uuid default (sqlite).
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
