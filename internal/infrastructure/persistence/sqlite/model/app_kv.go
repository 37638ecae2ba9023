package model

// AppKV backs sessions and login state. ExpiresAt is unix milliseconds, 0 means no expiry.
type AppKV struct {
	Key       string `gorm:"column:key;type:text;primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
	ExpiresAt int64  `gorm:"column:expires_at;not null;default:0;index"`
}

func (AppKV) TableName() string {
	return "app_kv"
}

// All lists every table owned by the sqlite backend, in migration order.
func All() []any {
	return []any{&Profile{}, &Outcome{}, &AppKV{}}
}
