package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Photo is a saved capture file.
type Photo struct {
	ID        string    `json:"id"`
	IntentID  string    `json:"intent_id"`
	Path      string    `json:"path"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	TakenAt   time.Time `json:"taken_at"`
	CreatedAt time.Time `json:"created_at"`
}

// PhotoRepository provides catalog operations for photos.
type PhotoRepository struct {
	db *sql.DB
}

// Photos returns the photo repository for this store.
func (s *Store) Photos() *PhotoRepository {
	return &PhotoRepository{db: s.db}
}

const photoColumns = `id, intent_id, path, width, height, taken_at, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row scanner) (*Photo, error) {
	p := &Photo{}
	if err := row.Scan(&p.ID, &p.IntentID, &p.Path, &p.Width, &p.Height, &p.TakenAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new photo record.
func (r *PhotoRepository) Create(p *Photo) error {
	p.CreatedAt = time.Now()
	if p.TakenAt.IsZero() {
		p.TakenAt = p.CreatedAt
	}

	_, err := r.db.Exec(
		`INSERT INTO photos (`+photoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.IntentID, p.Path, p.Width, p.Height, p.TakenAt, p.CreatedAt,
	)
	return err
}

// GetByID retrieves a photo by its ID.
func (r *PhotoRepository) GetByID(id string) (*Photo, error) {
	p, err := scanPhoto(r.db.QueryRow(`SELECT `+photoColumns+` FROM photos WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns photos newest first. A limit <= 0 returns all of them.
func (r *PhotoRepository) List(limit int) ([]*Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos ORDER BY taken_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return photos, nil
}

// Count returns the number of stored photos.
func (r *PhotoRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM photos`).Scan(&n)
	return n, err
}

// Delete removes a photo record by its ID. The file itself is untouched.
func (r *PhotoRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
