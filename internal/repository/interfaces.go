package repository

import (
	"context"
	"image"
	"time"
)

// ImageRepository defines the interface for image data access operations
type ImageRepository interface {
	// FetchImage retrieves an image from a URL
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// ReadingRepository stores committed plate readings.
type ReadingRepository interface {
	// Save stores a reading and fills in its ID and CreatedAt.
	Save(ctx context.Context, reading *Reading) error

	// FindByPlate returns the most recent readings of a plate, newest first.
	FindByPlate(ctx context.Context, plate string, limit int) ([]*Reading, error)

	// FindBySession returns every reading of a session in commit order.
	FindBySession(ctx context.Context, sessionID string) ([]*Reading, error)
}

// Reading is a plate committed by a recognition session or a one-shot call.
type Reading struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	TrackID   string    `json:"track_id,omitempty"`
	Plate     string    `json:"plate"`
	Source    string    `json:"source,omitempty"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Hits      int       `json:"hits"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}
