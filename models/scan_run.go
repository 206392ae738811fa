package models

import "time"

// ScanRun is the persisted header of one batch run.
type ScanRun struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	RunID      string `gorm:"size:36;uniqueIndex;not null"`
	InputDir   string `gorm:"size:512;not null"`
	OutputPath string `gorm:"size:512;not null"`
	Files      int    `gorm:"not null"`
	Failed     int    `gorm:"not null"`
	// Records is a one-to-many relation keyed by the run uuid
	Records []ScanRecord `gorm:"foreignKey:RunID;references:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
