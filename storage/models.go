package storage

import (
	"time"
)

// Participant is a chat member as last seen by the bot
type Participant struct {
	ChatID    int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	FirstName string
	Handle    string `gorm:"index"`
	UpdatedAt time.Time
}

// Ban is a global ban with its expiry
type Ban struct {
	UserID int64     `gorm:"primaryKey;autoIncrement:false"`
	Until  time.Time `gorm:"index"`
}

// TeaEntry is the weekly tea total of a user
type TeaEntry struct {
	UserID int64 `gorm:"primaryKey;autoIncrement:false"`
	Liters float64
}

// Setting is a key-value pair for small pieces of bot state
type Setting struct {
	Name  string `gorm:"primaryKey"`
	Value string
}
