// Package users reads member snapshots owned by the user service.
package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/zsmartex/carbonex/models"
	"github.com/zsmartex/carbonex/types"
)

var ErrMemberNotFound = types.NewError(types.KindNotFound, "member.not_found", "member not found")

type Service interface {
	FindMember(ctx context.Context, id int64) (*models.Member, error)
}

// GormService reads the members table replicated from the user service.
type GormService struct {
	db *gorm.DB
}

func NewGormService(db *gorm.DB) *GormService {
	return &GormService{db: db}
}

func (s *GormService) FindMember(ctx context.Context, id int64) (*models.Member, error) {
	var member models.Member
	if err := s.db.WithContext(ctx).First(&member, id).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("member %d: %w", id, ErrMemberNotFound)
	} else if err != nil {
		return nil, err
	}

	return &member, nil
}

func (s *GormService) FindMemberByUID(ctx context.Context, uid string) (*models.Member, error) {
	var member models.Member
	if err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&member).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("member %s: %w", uid, ErrMemberNotFound)
	} else if err != nil {
		return nil, err
	}

	return &member, nil
}

// Save upserts a member snapshot; used when the user service pushes updates.
func (s *GormService) Save(ctx context.Context, member *models.Member) error {
	return s.db.WithContext(ctx).Save(member).Error
}
