package model

// Outcome mirrors the pipeline's violation_master table. last_image_key carries a
// secondary index so lookups by uploaded image are index queries.
type Outcome struct {
	EmployeeID   string `gorm:"column:employee_id;type:text;primaryKey"`
	Violations   int    `gorm:"column:violations;not null;default:0"`
	LastMissing  string `gorm:"column:last_missing;type:text;not null;default:''"`
	LastImageKey string `gorm:"column:last_image_key;type:text;not null;default:'';index:idx_violation_master_last_image_key"`
	LastUpdated  string `gorm:"column:last_updated;type:text;not null;default:''"`
}

func (Outcome) TableName() string {
	return "violation_master"
}
