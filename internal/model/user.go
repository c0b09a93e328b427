package model

import (
	"time"

	"gorm.io/gorm"
)

// User is a shop account
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password  string         `json:"-" gorm:"type:varchar(255)"`
	Name      string         `json:"name" gorm:"type:varchar(100)"`
	IsStaff   bool           `json:"-" gorm:"default:false"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Role is the JWT role string for the user
func (u *User) Role() string {
	if u.IsStaff {
		return RoleStaff
	}
	return RoleCustomer
}

const (
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)
