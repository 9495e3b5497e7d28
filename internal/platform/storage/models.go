package storage

import "time"

// SpeechCacheEntry is the metadata index row for one cached audio fragment.
// The digest uniquely addresses the backing blob file.
type SpeechCacheEntry struct {
	Digest     string    `gorm:"primaryKey;size:40"`
	Voice      string    `gorm:"size:128;index"`
	Text       string    `gorm:"type:text"`
	Path       string    `gorm:"size:512"`
	SizeBytes  int64     `gorm:"not null"`
	LastAccess time.Time `gorm:"index"`
}

// TableName overrides the gorm default.
func (SpeechCacheEntry) TableName() string {
	return "speech_cache_entries"
}
