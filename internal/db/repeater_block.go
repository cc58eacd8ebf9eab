package db

import "gorm.io/gorm"

const (
	BlockTypeMarkdown = "markdown"
	BlockTypeHTML     = "html"
	BlockTypeImage    = "image"
	BlockTypeVideo    = "video"
)

// RepeaterBlock 是页面中可重复的结构化内容单元。
type RepeaterBlock struct {
	gorm.Model
	PageID    uint   `gorm:"index;not null"`
	Type      string `gorm:"size:32;not null;default:markdown"`
	Content   string `gorm:"type:text"`
	SortOrder int    `gorm:"default:0"`
}

// TableName 自定义表名以保持命名一致。
func (RepeaterBlock) TableName() string {
	return "repeater_blocks"
}
