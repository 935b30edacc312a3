package domain

import "time"

type DeviceInfo struct {
	DeviceName string `json:"deviceName,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
	IPAddress  string `json:"ipAddress,omitempty"`
}

// Session is one login on one device. RefreshTokenHash always holds the hash of
// the only refresh token currently accepted for it.
type Session struct {
	ID               string     `json:"sessionId"`
	UserID           string     `json:"userId"`
	Email            string     `json:"email"`
	RefreshTokenHash string     `json:"-"`
	Device           DeviceInfo `json:"device"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastUsedAt       time.Time  `json:"lastUsedAt"`
	ExpiresAt        time.Time  `json:"expiresAt"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SupersededToken marks a refresh token replaced by rotation. Presenting it
// again means the rotation chain leaked.
type SupersededToken struct {
	TokenHash    string
	UserID       string
	SessionID    string
	SupersededAt time.Time
	ExpiresAt    time.Time
}
