package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"go-plate-recognizer/internal/repository"
)

type pgReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository returns a ReadingRepository backed by db.
func NewReadingRepository(db *sql.DB) repository.ReadingRepository {
	return &pgReadingRepository{db: db}
}

const readingColumns = `id, session_id, track_id, plate, source, x, y, width, height, hits,
	first_seen, last_seen, created_at`

func (r *pgReadingRepository) Save(ctx context.Context, reading *repository.Reading) error {
	if reading.ID == "" {
		reading.ID = uuid.NewString()
	}
	query := `INSERT INTO plate_readings
		(id, session_id, track_id, plate, source, x, y, width, height, hits, first_seen, last_seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, CURRENT_TIMESTAMP)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		reading.ID,
		nullString(reading.SessionID), nullString(reading.TrackID),
		reading.Plate, nullString(reading.Source),
		reading.X, reading.Y, reading.Width, reading.Height, reading.Hits,
		reading.FirstSeen, reading.LastSeen,
	).Scan(&reading.CreatedAt)
	if err != nil {
		return fmt.Errorf("ReadingRepository.Save: %w", err)
	}
	reading.CreatedAt = reading.CreatedAt.In(time.UTC)
	return nil
}

func (r *pgReadingRepository) FindByPlate(ctx context.Context, plate string, limit int) ([]*repository.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM plate_readings WHERE plate = $1 ORDER BY created_at DESC`
	args := []any{plate}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	readings, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ReadingRepository.FindByPlate: %w", err)
	}
	if len(readings) == 0 {
		return nil, repository.ErrReadingNotFound
	}
	return readings, nil
}

func (r *pgReadingRepository) FindBySession(ctx context.Context, sessionID string) ([]*repository.Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM plate_readings WHERE session_id = $1 ORDER BY created_at`
	readings, err := r.query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ReadingRepository.FindBySession: %w", err)
	}
	return readings, nil
}

func (r *pgReadingRepository) query(ctx context.Context, query string, args ...any) ([]*repository.Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*repository.Reading
	for rows.Next() {
		reading := &repository.Reading{}
		var sessionID, trackID, source sql.NullString
		if err := rows.Scan(
			&reading.ID, &sessionID, &trackID, &reading.Plate, &source,
			&reading.X, &reading.Y, &reading.Width, &reading.Height, &reading.Hits,
			&reading.FirstSeen, &reading.LastSeen, &reading.CreatedAt,
		); err != nil {
			return nil, err
		}
		reading.SessionID = sessionID.String
		reading.TrackID = trackID.String
		reading.Source = source.String
		reading.FirstSeen = reading.FirstSeen.In(time.UTC)
		reading.LastSeen = reading.LastSeen.In(time.UTC)
		reading.CreatedAt = reading.CreatedAt.In(time.UTC)
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
