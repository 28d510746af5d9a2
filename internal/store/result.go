package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// StepResult is the stored outcome of one completed exercise step.
type StepResult struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Step        int       `json:"step"`
	PoseID      string    `json:"pose_id"`
	StableScore *int      `json:"stable_score"`
	Frames      int       `json:"frames"`
	Scores      []int     `json:"scores"`
	CompletedAt time.Time `json:"completed_at"`
}

// ResultRepository provides operations for step results.
type ResultRepository struct {
	db *sql.DB
}

// Results returns the step result repository for this store.
func (s *Store) Results() *ResultRepository {
	return &ResultRepository{db: s.db}
}

// Create inserts a step result and sets its ID.
func (r *ResultRepository) Create(res *StepResult) error {
	if res.CompletedAt.IsZero() {
		res.CompletedAt = time.Now()
	}

	scores := res.Scores
	if scores == nil {
		scores = []int{}
	}
	data, err := json.Marshal(scores)
	if err != nil {
		return err
	}

	var stable sql.NullInt64
	if res.StableScore != nil {
		stable = sql.NullInt64{Int64: int64(*res.StableScore), Valid: true}
	}

	result, err := r.db.Exec(
		`INSERT INTO step_results (session_id, step, pose_id, stable_score, frames, scores, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.SessionID, res.Step, res.PoseID, stable, res.Frames, string(data), res.CompletedAt,
	)
	if err != nil {
		return err
	}

	res.ID, err = result.LastInsertId()
	return err
}

// ListBySession retrieves a session's step results in step order.
func (r *ResultRepository) ListBySession(sessionID string) ([]StepResult, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, step, pose_id, stable_score, frames, scores, completed_at
		 FROM step_results
		 WHERE session_id = ?
		 ORDER BY step, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []StepResult
	for rows.Next() {
		var res StepResult
		var stable sql.NullInt64
		var scores string
		if err := rows.Scan(&res.ID, &res.SessionID, &res.Step, &res.PoseID, &stable, &res.Frames, &scores, &res.CompletedAt); err != nil {
			return nil, err
		}
		if stable.Valid {
			v := int(stable.Int64)
			res.StableScore = &v
		}
		if err := json.Unmarshal([]byte(scores), &res.Scores); err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
