package questions

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mathrumble/mathrumble/internal/db"
	"github.com/mathrumble/mathrumble/internal/models"
)

// Repository persists the custom question bank.
type Repository struct {
	db db.DBTX
}

func NewRepository(dbtx db.DBTX) *Repository {
	return &Repository{db: dbtx}
}

// CreateCustom stores an operator-authored question.
func (r *Repository) CreateCustom(ctx context.Context, text string, answer float64, difficulty string, timeLimit int) (models.Question, error) {
	q := models.Question{
		ID:           uuid.New(),
		QuestionText: text,
		Answer:       answer,
		Difficulty:   difficulty,
		TimeLimit:    timeLimit,
		IsCustom:     true,
	}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO questions (id, question_text, answer, difficulty, time_limit, is_custom)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		q.ID, q.QuestionText, q.Answer, q.Difficulty, q.TimeLimit, q.IsCustom,
	); err != nil {
		return models.Question{}, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// ListCustom returns the stored custom questions, narrowed to one difficulty
// when the filter is non-empty.
func (r *Repository) ListCustom(ctx context.Context, difficulty string) ([]models.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, question_text, answer, difficulty, time_limit, is_custom
		 FROM questions WHERE is_custom AND ($1 = '' OR difficulty = $1)
		 ORDER BY question_text`,
		difficulty,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.Answer, &q.Difficulty, &q.TimeLimit, &q.IsCustom); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
