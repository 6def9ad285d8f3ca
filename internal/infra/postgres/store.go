// Package postgres is the durable record store: quizzes, sessions, players
// and answers. The uniqueness rules the coordinator leans on (session codes,
// case-insensitive player names, one answer per player and question) are
// enforced here by unique indexes, so they hold even against racing writers.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz/internal/domain"
)

const (
	uniqueViolation     = "23505"
	answerSubmissionKey = "answers_submission_key"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, title, topic_prompt, source_text, questions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		quiz.ID, quiz.Title, quiz.TopicPrompt, quiz.SourceText, questions, quiz.CreatedAt)
	return translate(err)
}

func (s *Store) QuizByID(ctx context.Context, id string) (domain.Quiz, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, title, topic_prompt, source_text, questions, created_at
		 FROM quizzes WHERE id = $1`, id)

	var quiz domain.Quiz
	var questions []byte
	err := row.Scan(&quiz.ID, &quiz.Title, &quiz.TopicPrompt, &quiz.SourceText, &questions, &quiz.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz %s: %w", id, err)
	}
	if err := json.Unmarshal(questions, &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("decode questions for quiz %s: %w", id, err)
	}
	return quiz, nil
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, topic_prompt, source_text, questions, created_at
		 FROM quizzes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Quiz
	for rows.Next() {
		var quiz domain.Quiz
		var questions []byte
		if err := rows.Scan(&quiz.ID, &quiz.Title, &quiz.TopicPrompt, &quiz.SourceText, &questions, &quiz.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(questions, &quiz.Questions); err != nil {
			return nil, fmt.Errorf("decode questions for quiz %s: %w", quiz.ID, err)
		}
		out = append(out, quiz)
	}
	return out, rows.Err()
}

// LoadQuiz satisfies the cache loaders' QuizLoader interface.
func (s *Store) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.QuizByID(ctx, quizID)
}

func (s *Store) CreateSession(ctx context.Context, session domain.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO game_sessions (id, code, host_name, quiz_id, status, current_question_index, created_at, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		session.ID, session.Code, session.HostName, session.QuizID, string(session.Status),
		session.CurrentQuestionIndex, session.CreatedAt, session.StartedAt, session.EndedAt)
	return translate(err)
}

func (s *Store) SessionByCode(ctx context.Context, code string) (domain.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, code, host_name, quiz_id, status, current_question_index, created_at, started_at, ended_at
		 FROM game_sessions WHERE code = $1`, code)

	var session domain.Session
	var status string
	err := row.Scan(&session.ID, &session.Code, &session.HostName, &session.QuizID, &status,
		&session.CurrentQuestionIndex, &session.CreatedAt, &session.StartedAt, &session.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session %s: %w", code, err)
	}
	session.Status = domain.SessionStatus(status)
	return session, nil
}

func (s *Store) UpdateSession(ctx context.Context, session domain.Session) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE game_sessions
		 SET status = $2, current_question_index = $3, started_at = $4, ended_at = $5
		 WHERE id = $1`,
		session.ID, string(session.Status), session.CurrentQuestionIndex, session.StartedAt, session.EndedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) CreatePlayer(ctx context.Context, player domain.Player) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO players (id, session_id, conn_id, name, score, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		player.ID, player.SessionID, nullable(player.ConnID), player.Name, player.Score, player.JoinedAt)
	return translate(err)
}

func (s *Store) UpdatePlayer(ctx context.Context, player domain.Player) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE players SET conn_id = $2, score = $3 WHERE id = $1`,
		player.ID, nullable(player.ConnID), player.Score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

func (s *Store) PlayerByName(ctx context.Context, sessionID, name string) (domain.Player, error) {
	return s.scanPlayer(s.pool.QueryRow(ctx,
		playerColumns+` WHERE session_id = $1 AND lower(name) = lower($2)`, sessionID, name))
}

func (s *Store) PlayerByConn(ctx context.Context, sessionID, connID string) (domain.Player, error) {
	if connID == "" {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return s.scanPlayer(s.pool.QueryRow(ctx,
		playerColumns+` WHERE session_id = $1 AND conn_id = $2`, sessionID, connID))
}

func (s *Store) PlayersBySession(ctx context.Context, sessionID string) ([]domain.Player, error) {
	rows, err := s.pool.Query(ctx,
		playerColumns+` WHERE session_id = $1 ORDER BY joined_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Player
	for rows.Next() {
		player, err := s.scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, player)
	}
	return out, rows.Err()
}

func (s *Store) ClearPlayerConn(ctx context.Context, connID string) error {
	if connID == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE players SET conn_id = NULL WHERE conn_id = $1`, connID)
	return err
}

func (s *Store) CreateAnswer(ctx context.Context, answer domain.Answer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO answers (id, session_id, player_id, question_index, selected_option_id, is_correct, points_awarded, response_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		answer.ID, answer.SessionID, answer.PlayerID, answer.QuestionIndex, answer.SelectedOptionID,
		answer.IsCorrect, answer.PointsAwarded, answer.ResponseTimeMS, answer.CreatedAt)
	return translate(err)
}

func (s *Store) AnswersBySession(ctx context.Context, sessionID string) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, player_id, question_index, selected_option_id, is_correct, points_awarded, response_time_ms, created_at
		 FROM answers WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Answer
	for rows.Next() {
		var answer domain.Answer
		if err := rows.Scan(&answer.ID, &answer.SessionID, &answer.PlayerID, &answer.QuestionIndex,
			&answer.SelectedOptionID, &answer.IsCorrect, &answer.PointsAwarded, &answer.ResponseTimeMS, &answer.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, answer)
	}
	return out, rows.Err()
}

const playerColumns = `SELECT id, session_id, conn_id, name, score, joined_at FROM players`

type scannable interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanPlayer(row scannable) (domain.Player, error) {
	var player domain.Player
	var connID sql.NullString
	err := row.Scan(&player.ID, &player.SessionID, &connID, &player.Name, &player.Score, &player.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.Player{}, err
	}
	player.ConnID = connID.String
	return player, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// translate maps unique-violation failures onto the domain sentinels the
// coordinator distinguishes: a raced answer keeps its dedup semantics, every
// other collision is a generic duplicate.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == answerSubmissionKey {
			return domain.ErrDuplicateAnswer
		}
		return domain.ErrDuplicateRecord
	}
	return err
}
