package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Customer struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	CompanyName string            `gorm:"type:text"`
	FirstName   string            `gorm:"type:text"`
	Email       string            `gorm:"type:text"`
	SalesRepID  *snowflake.ID     `gorm:"index"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

// DisplayName prefers the company name, falls back to the first name, and
// finally to a generic salutation.
func (c Customer) DisplayName() string {
	if name := strings.TrimSpace(c.CompanyName); name != "" {
		return name
	}
	if name := strings.TrimSpace(c.FirstName); name != "" {
		return name
	}
	return "Customer"
}

var (
	ErrNotFound = errors.New("not_found")
	ErrNoEmail  = errors.New("no_email")
)
