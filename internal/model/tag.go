package model

// Tag labels mood entries. Predefined tags are global; custom tags
// belong to the user who created them.
type Tag struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"uniqueIndex"`
	Category     string
	IsPredefined bool  `gorm:"default:false"`
	CreatedBy    *uint `gorm:"index"`
}
