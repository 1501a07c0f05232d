package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Annotation one finalized pen stroke on a song, persisted once per stroke:end
type Annotation struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	SongID    string         `gorm:"type:varchar(128);not null;index:idx_annotation_song_created" json:"songId"`
	UserID    string         `gorm:"type:varchar(128);not null" json:"userId"`
	UserName  string         `gorm:"type:varchar(100)" json:"userName"`
	SVGPath   string         `gorm:"type:text;not null" json:"svgPath"`
	Color     string         `gorm:"type:varchar(32)" json:"color"`
	Tool      string         `gorm:"type:varchar(32)" json:"tool"`
	Version   int            `gorm:"not null;default:1" json:"version"`
	Checksum  string         `gorm:"type:varchar(64);not null" json:"checksum"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index:idx_annotation_song_created" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Annotation) TableName() string {
	return "annotations"
}

// BeforeCreate assigns the id, version and integrity checksum.
func (a *Annotation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	a.Checksum = PathChecksum(a.SVGPath)
	return nil
}

// Intact reports whether the stored path still matches its checksum.
func (a *Annotation) Intact() bool {
	return a.Checksum == PathChecksum(a.SVGPath)
}

// PathChecksum hex encoded sha256 of an svg path
func PathChecksum(svgPath string) string {
	sum := sha256.Sum256([]byte(svgPath))
	return hex.EncodeToString(sum[:])
}
