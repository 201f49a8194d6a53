package model

import (
	"gorm.io/datatypes"
)

// BarSeriesModel 保存一个缓存 key 对应的完整 bar 序列（JSON 数组）。
type BarSeriesModel struct {
	Key           string         `gorm:"column:cache_key;primaryKey;size:191"`
	Version       string         `gorm:"column:version;index"`
	Symbol        string         `gorm:"column:symbol;index"`
	FirstDate     string         `gorm:"column:first_date"`
	LastDate      string         `gorm:"column:last_date"`
	Rows          int            `gorm:"column:rows"`
	Bars          datatypes.JSON `gorm:"column:bars"`
	CreatedAtUnix int64          `gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAtUnix int64          `gorm:"column:updated_at;autoUpdateTime:milli"`
}

func (BarSeriesModel) TableName() string { return "bar_series" }
