// Package domain contains the sales-rep directory model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Employee is a directory entry for a sales representative.
type Employee struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text"`
	Email     string       `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Employee) TableName() string { return "employees" }
