package model

import "time"

// ClickEvent is one recorded click on a short URL. Rows are append-only and
// are the durable source of truth for analytics; ShortURL.ClickCount is a
// best-effort aggregate reconciled from them.
type ClickEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Code      string    `json:"code" gorm:"size:50;index:ix_click_events_code_ts,priority:1"`
	Timestamp time.Time `json:"timestamp" gorm:"index:ix_click_events_code_ts,priority:2"`
	MaskedIP  string    `json:"masked_ip" gorm:"size:45"`
	UserAgent string    `json:"user_agent" gorm:"type:text"`
	Referer   string    `json:"referer" gorm:"type:text"`
	Country   string    `json:"country" gorm:"size:2"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
