package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/dunning/internal/employee/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Employee, error) {
	var employee domain.Employee
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, created_at, updated_at
		 FROM employees WHERE id = ?`,
		id,
	).Scan(&employee).Error
	if err != nil {
		return nil, err
	}
	if employee.ID == 0 {
		return nil, nil
	}
	return &employee, nil
}
