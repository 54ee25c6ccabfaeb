package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/miro2468/MoodTracker-Bot/internal/model"
)

// ErrTagNotOwned is returned when a user tries to delete a predefined
// tag or another user's custom tag.
var ErrTagNotOwned = errors.New("tag is predefined or belongs to another user")

// TagRepository manages predefined and custom tags.
type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// ListForUser returns predefined tags plus the user's custom tags,
// ordered by category then name.
func (r *TagRepository) ListForUser(ctx context.Context, userID uint) ([]model.Tag, error) {
	var tags []model.Tag
	err := r.db.WithContext(ctx).
		Where("is_predefined = ? OR created_by = ?", true, userID).
		Order("category ASC, name ASC").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// CreateCustom adds a user-owned tag.
func (r *TagRepository) CreateCustom(ctx context.Context, userID uint, name, category string) (*model.Tag, error) {
	tag := model.Tag{Name: name, Category: category, CreatedBy: &userID}
	if err := r.db.WithContext(ctx).Create(&tag).Error; err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return &tag, nil
}

// CountCustom reports how many custom tags the user owns.
func (r *TagRepository) CountCustom(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Tag{}).
		Where("created_by = ? AND is_predefined = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count custom tags: %w", err)
	}
	return count, nil
}

// FindByName resolves a tag visible to the user by exact name.
func (r *TagRepository) FindByName(ctx context.Context, userID uint, name string) (*model.Tag, error) {
	var tag model.Tag
	err := r.db.WithContext(ctx).
		Where("name = ? AND (is_predefined = ? OR created_by = ?)", name, true, userID).
		First(&tag).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// DeleteCustom removes the user's own non-predefined tag along with
// its entry associations.
func (r *TagRepository) DeleteCustom(ctx context.Context, userID, tagID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag model.Tag
		err := tx.Where("id = ? AND created_by = ? AND is_predefined = ?", tagID, userID, false).
			First(&tag).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return ErrTagNotOwned
		case err != nil:
			return fmt.Errorf("find tag: %w", err)
		}

		if err := tx.Exec("DELETE FROM mood_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
			return fmt.Errorf("unlink tag: %w", err)
		}
		if err := tx.Delete(&tag).Error; err != nil {
			return fmt.Errorf("delete tag: %w", err)
		}
		return nil
	})
}
