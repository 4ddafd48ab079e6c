package main

import "time"

// Standard API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Define models
type Device struct {
	ID           uint   `gorm:"primarykey"`
	DeviceID     string `gorm:"uniqueIndex;not null"`
	DeviceName   string `gorm:"not null"`
	DeviceToken  string `gorm:"not null" json:"-"`
	CurrentImage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type DeviceSetting struct {
	ID                uint   `gorm:"primarykey"`
	DeviceID          string `gorm:"uniqueIndex;not null"`
	ImgUpdateInterval int    `gorm:"not null;default:600"`
	Size              int    `gorm:"not null;default:128"`
	Levels            int    `gorm:"not null;default:5"`
	Matrix            string `gorm:"not null;default:'Bayer4x4'"`
	ResizeFilter      string `gorm:"not null;default:'MitchellNetravali'"`
	ResizeMethod      string `gorm:"not null;default:'stretch'"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type DeviceTelemetry struct {
	ID           uint      `gorm:"primarykey"`
	DeviceID     string    `gorm:"uniqueIndex;not null"`
	BatteryLevel int       `gorm:"not null;default:100"`
	LastSeen     time.Time `gorm:"not null"`
}

type DBImage struct {
	ID        uint   `gorm:"primarykey"`
	Path      string `gorm:"uniqueIndex;not null"`
	UUID      string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DitheredImage is a cached conversion of a DBImage for one combination of settings.
type DitheredImage struct {
	ID           uint   `gorm:"primarykey"`
	UUID         string `gorm:"uniqueIndex;not null"`
	DBImageUUID  string `gorm:"index;not null"` // Foreign key to DBImage
	Size         int    `gorm:"not null;default:128"`
	Levels       int    `gorm:"not null;default:5"`
	Matrix       string `gorm:"not null"`
	ResizeFilter string `gorm:"not null"`
	ResizeMethod string `gorm:"not null"`
	Path         string `gorm:"uniqueIndex;not null"`
	IndexPath    string // packed palette indices, empty when the level count doesn't fit a byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RandomImage struct {
	ID   uint   `gorm:"primarykey"`
	UUID string `gorm:"uniqueIndex;not null"`
}
