package models

import "time"

// Represents one request served by the gateway
type RequestLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RequestID      string    `gorm:"index;size:36" json:"request_id"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
	Method         string    `json:"method"`
	Path           string    `gorm:"index" json:"path"`
	StatusCode     int       `gorm:"index" json:"status_code"`
	ResponseTimeMs int       `json:"response_time_ms"`
	ClientIdentity string    `gorm:"index" json:"client_identity"`
	Origin         string    `json:"origin,omitempty"`
	UserAgent      string    `json:"user_agent"`
	RateLimited    bool      `json:"rate_limited"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
