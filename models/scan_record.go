package models

import "time"

// ScanRecord is a persisted ExtractedRecord belonging to a ScanRun.
type ScanRecord struct {
	ID            uint `gorm:"primaryKey"`
	CreatedAt     time.Time
	RunID         string `gorm:"size:36;index;not null"`
	SourceFile    string `gorm:"size:512;not null"`
	ClientName    string `gorm:"size:255"`
	ClientAddress string `gorm:"size:512"`
	TaxID         string `gorm:"size:64"`
	// Mark record as failed (load or OCR error) so blank rows can be audited later
	Failed       bool   `gorm:"default:false;index"`
	FailedReason string `gorm:"size:255"`
}

// Record converts the row back into its output shape.
func (s ScanRecord) Record() ExtractedRecord {
	return ExtractedRecord{
		ClientName:    s.ClientName,
		ClientAddress: s.ClientAddress,
		TaxID:         s.TaxID,
		SourceFile:    s.SourceFile,
	}
}
