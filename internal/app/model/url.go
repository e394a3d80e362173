package model

import "time"

// ShortURL describes the core short-link record stored in Postgres.
//
// Codes are never recycled: a record is retired by flipping IsActive, never by
// deleting the row, so the uniqueness constraint on Code holds across the full
// history of issued codes.
type ShortURL struct {
	Code             string     `db:"code" gorm:"primaryKey;size:50"`
	TargetURL        string     `db:"target_url" gorm:"type:text;not null"`
	Title            string     `db:"title" gorm:"size:500"`
	Description      string     `db:"description" gorm:"type:text"`
	ClickCount       int64      `db:"click_count" gorm:"not null;default:0"`
	IsActive         bool       `db:"is_active" gorm:"not null;default:true"`
	IsCustom         bool       `db:"is_custom" gorm:"not null;default:false"`
	CreatorIP        string     `db:"creator_ip" gorm:"size:45"`
	CreatorUserAgent string     `db:"creator_user_agent" gorm:"type:text"`
	ExpiresAt        *time.Time `db:"expires_at" gorm:"index"`
	CreatedAt        time.Time  `db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `db:"updated_at" gorm:"autoUpdateTime"`
}

// Expired reports whether the record's expiry has passed.
func (u *ShortURL) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}
