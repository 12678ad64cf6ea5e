package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"quizchain/internal/app"
	"quizchain/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Archive journals engine state to Postgres as JSONB rows, one row per quiz,
// attempt, and user. Attempts carry a sequence column so a restore replays
// them in application order.
type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

func (a *Archive) SaveQuiz(ctx context.Context, quiz *domain.QuizSet) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO quizzes (id, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		quiz.ID, string(data))
	if err != nil {
		return fmt.Errorf("save quiz: %w", err)
	}
	return nil
}

func (a *Archive) SaveAttempt(ctx context.Context, attempt *domain.Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	// Attempts are immutable; a conflicting row means this one was already
	// journaled, so do nothing.
	_, err = a.pool.Exec(ctx,
		`INSERT INTO attempts (quiz_id, wallet, data) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (quiz_id, wallet) DO NOTHING`,
		attempt.QuizID, attempt.User, string(data))
	if err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

func (a *Archive) SaveUser(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO users (wallet, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (wallet) DO UPDATE SET data = EXCLUDED.data`,
		user.WalletAddress, string(data))
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// Load reads the whole archive back into a snapshot for engine restore.
func (a *Archive) Load(ctx context.Context) (*app.Snapshot, error) {
	snapshot := &app.Snapshot{}

	err := a.loadRows(ctx, `SELECT data FROM quizzes ORDER BY id`, func(raw []byte) error {
		quiz := &domain.QuizSet{}
		if err := json.Unmarshal(raw, quiz); err != nil {
			return fmt.Errorf("unmarshal quiz: %w", err)
		}
		snapshot.Quizzes = append(snapshot.Quizzes, quiz)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load quizzes: %w", err)
	}

	err = a.loadRows(ctx, `SELECT data FROM attempts ORDER BY seq`, func(raw []byte) error {
		attempt := &domain.Attempt{}
		if err := json.Unmarshal(raw, attempt); err != nil {
			return fmt.Errorf("unmarshal attempt: %w", err)
		}
		snapshot.Attempts = append(snapshot.Attempts, attempt)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}

	err = a.loadRows(ctx, `SELECT data FROM users ORDER BY wallet`, func(raw []byte) error {
		user := &domain.User{}
		if err := json.Unmarshal(raw, user); err != nil {
			return fmt.Errorf("unmarshal user: %w", err)
		}
		snapshot.Users = append(snapshot.Users, user)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	return snapshot, nil
}

func (a *Archive) loadRows(ctx context.Context, query string, each func(raw []byte) error) error {
	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		if err := each(raw); err != nil {
			return err
		}
	}
	return rows.Err()
}
