package model

type Profile struct {
	EmployeeID string `gorm:"column:employee_id;type:text;primaryKey"`
	Name       string `gorm:"column:name;type:text;not null"`
	Department string `gorm:"column:department;type:text;not null;default:'';index"`
	Site       string `gorm:"column:site;type:text;not null;default:''"`
	Line       string `gorm:"column:line;type:text;not null;default:''"`
	JobTitle   string `gorm:"column:job_title;type:text;not null;default:''"`
	Email      string `gorm:"column:email;type:text;not null;default:''"`
	PhotoKey   string `gorm:"column:photo_key;type:text;not null;default:''"`
	Status     string `gorm:"column:status;type:text;not null;default:'Active'"`
	CreatedAt  string `gorm:"column:created_at;type:text;not null;default:''"`
}

func (Profile) TableName() string {
	return "employee_master"
}
