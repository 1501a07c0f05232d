// Package annotation persists finalized strokes. It is the only place the
// sync engine touches storage, once per completed stroke.
package annotation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"score-annotator/internal/model"
)

var ErrInvalidInput = errors.New("invalid annotation input")

// Input is what the sync engine knows when a stroke is finalized.
type Input struct {
	SongID   string
	UserID   string
	UserName string
	SVGPath  string
	Color    string
	Tool     string
}

// Validate checks required fields.
func (in Input) Validate() error {
	switch {
	case in.SongID == "":
		return fmt.Errorf("%w: songId is required", ErrInvalidInput)
	case in.UserID == "":
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	case in.SVGPath == "":
		return fmt.Errorf("%w: svgPath is required", ErrInvalidInput)
	}
	return nil
}

// Store GORM backed annotation storage
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts one annotation. The id and checksum are generated.
func (s *Store) Create(ctx context.Context, in Input) (*model.Annotation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	a := &model.Annotation{
		SongID:   in.SongID,
		UserID:   in.UserID,
		UserName: in.UserName,
		SVGPath:  in.SVGPath,
		Color:    in.Color,
		Tool:     in.Tool,
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, fmt.Errorf("create annotation for song %s: %w", in.SongID, err)
	}
	return a, nil
}

// ListBySong returns the song's annotations that are not soft deleted, oldest first.
func (s *Store) ListBySong(ctx context.Context, songID string) ([]model.Annotation, error) {
	annotations := make([]model.Annotation, 0)
	err := s.db.WithContext(ctx).
		Where("song_id = ?", songID).
		Order("created_at ASC").
		Find(&annotations).Error
	if err != nil {
		return nil, fmt.Errorf("list annotations for song %s: %w", songID, err)
	}
	return annotations, nil
}

// CountBySong returns active annotation counts grouped by song.
func (s *Store) CountBySong(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		SongID string
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&model.Annotation{}).
		Select("song_id, count(*) as count").
		Group("song_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count annotations: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.SongID] = r.Count
	}
	return counts, nil
}
