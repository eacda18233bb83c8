package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/booking_engine/internal/model"
	"github.com/Freeeeeet/booking_engine/internal/repository/base"
)

// BranchRepository только чтение каталога филиалов; Create нужен для сидов и тестов
type BranchRepository struct {
	*base.Repository
}

func NewBranchRepository(q base.Querier) *BranchRepository {
	return &BranchRepository{Repository: base.NewRepository(q)}
}

// Create создаёт филиал
func (r *BranchRepository) Create(ctx context.Context, branch *model.Branch) error {
	query := `
		INSERT INTO branches (name, is_active)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, branch.Name, branch.IsActive).Scan(&branch.ID, &branch.CreatedAt)
	if err != nil {
		return fmt.Errorf("create branch: %w", err)
	}

	return nil
}

// GetByID получает филиал по ID
func (r *BranchRepository) GetByID(ctx context.Context, id int64) (*model.Branch, error) {
	query := `
		SELECT id, name, is_active, created_at
		FROM branches
		WHERE id = $1
	`

	var branch model.Branch
	err := r.QueryRow(ctx, query, id).Scan(&branch.ID, &branch.Name, &branch.IsActive, &branch.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get branch by id: %w", err)
	}

	return &branch, nil
}
