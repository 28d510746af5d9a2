package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Template is a stored pose template. Data holds the template document as
// accepted by the pose parser.
type Template struct {
	ID         string          `json:"id"`
	PoseID     string          `json:"pose_id"`
	Name       string          `json:"name"`
	CameraView string          `json:"camera_view,omitempty"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TemplateRepository provides CRUD operations for templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

const templateColumns = `id, pose_id, name, camera_view, data, created_at, updated_at`

// Create inserts a new template.
func (r *TemplateRepository) Create(t *Template) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PoseID, t.Name, t.CameraView, string(t.Data), t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetByID retrieves a template by its ID.
func (r *TemplateRepository) GetByID(id string) (*Template, error) {
	return r.get(`SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
}

// GetByPoseID retrieves a template by its pose ID.
func (r *TemplateRepository) GetByPoseID(poseID string) (*Template, error) {
	return r.get(`SELECT `+templateColumns+` FROM templates WHERE pose_id = ?`, poseID)
}

func (r *TemplateRepository) get(query string, arg string) (*Template, error) {
	t, err := scanTemplate(r.db.QueryRow(query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List retrieves all templates ordered by name.
func (r *TemplateRepository) List() ([]*Template, error) {
	rows, err := r.db.Query(`SELECT ` + templateColumns + ` FROM templates ORDER BY name, pose_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return templates, nil
}

// Update replaces an existing template's fields.
func (r *TemplateRepository) Update(t *Template) error {
	t.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE templates SET pose_id = ?, name = ?, camera_view = ?, data = ?, updated_at = ?
		 WHERE id = ?`,
		t.PoseID, t.Name, t.CameraView, string(t.Data), t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Delete removes a template by its ID.
func (r *TemplateRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*Template, error) {
	t := &Template{}
	var data string
	if err := row.Scan(&t.ID, &t.PoseID, &t.Name, &t.CameraView, &data, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Data = json.RawMessage(data)
	return t, nil
}

func expectAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
