package project

import (
	"context"
	"database/sql"
	"time"
)

// Summary is the listing view of a stored project.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Repository interface {
	Create(ctx context.Context, doc *Document) error
	// Get returns nil, nil when the project does not exist.
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]*Summary, error)
	Update(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, doc.ID, doc.Name, string(data), doc.Created.UTC().Format(time.RFC3339Nano), doc.Updated.UTC().Format(time.RFC3339Nano))
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Document, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM projects WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode([]byte(data))
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Summary
	for rows.Next() {
		var s Summary
		var createdAt, updatedAt string
		if err := rows.Scan(&s.ID, &s.Name, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		s.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Update(ctx context.Context, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, document = ?, updated_at = ? WHERE id = ?
	`, doc.Name, string(data), doc.Updated.UTC().Format(time.RFC3339Nano), doc.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
