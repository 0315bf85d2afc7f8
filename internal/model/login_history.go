package model

import "time"

type LoginHistory struct {
	ID        uint      `gorm:"primaryKey"`
	AccountID uint      `gorm:"index;not null"`
	Device    string    `gorm:"size:255"` // user agent
	IP        string    `gorm:"size:50"`
	Succeeded bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
