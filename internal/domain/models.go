package domain

import "time"

// SessionStatus tracks the lifecycle of a live game session.
type SessionStatus string

const (
	StatusLobby      SessionStatus = "lobby"
	StatusInProgress SessionStatus = "in_progress"
	StatusFinished   SessionStatus = "finished"
)

// Participant roles accepted on join.
const (
	RoleHost   = "host"
	RolePlayer = "player"
)

// Option is one selectable answer of a question.
type Option struct {
	ID   string `json:"id" validate:"required,max=5"`
	Text string `json:"text" validate:"required,max=300"`
}

// Question models an MCQ question. Correctness is resolved by comparing a
// submitted option id against CorrectOptionID; the options themselves carry
// no correctness marker so they are safe to broadcast.
type Question struct {
	Prompt           string   `json:"prompt" validate:"required,min=5,max=600"`
	Options          []Option `json:"options" validate:"required,min=2,max=6,dive"`
	CorrectOptionID  string   `json:"correct_option_id" validate:"required,max=5"`
	TimeLimitSeconds int      `json:"time_limit_seconds" validate:"required,min=5,max=90"`
}

// Quiz is stored quiz content plus catalog metadata.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title" validate:"required,min=3,max=120"`
	TopicPrompt string     `json:"topic_prompt" validate:"max=2000"`
	SourceText  string     `json:"source_text" validate:"max=20000"`
	Questions   []Question `json:"questions" validate:"required,min=1,max=50,dive"`
	CreatedAt   time.Time  `json:"created_at"`
}

// QuizSummary is the catalog listing view of a quiz.
type QuizSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	TopicPrompt   string    `json:"topic_prompt"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Session is one live run of a quiz, addressed by its join code.
// CurrentQuestionIndex is -1 while the session sits in the lobby.
type Session struct {
	ID                   string        `json:"id"`
	Code                 string        `json:"code"`
	HostName             string        `json:"host_name"`
	QuizID               string        `json:"quiz_id"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	CreatedAt            time.Time     `json:"created_at"`
	StartedAt            *time.Time    `json:"started_at,omitempty"`
	EndedAt              *time.Time    `json:"ended_at,omitempty"`
}

// Player is a participant record scoped to a single session. ConnID holds the
// live connection handle and is empty while the player is disconnected; the
// record itself survives disconnects.
type Player struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	ConnID    string    `json:"-"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Answer is the immutable record of one scored submission. At most one exists
// per (session, player, question index).
type Answer struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	PlayerID         string    `json:"player_id"`
	QuestionIndex    int       `json:"question_index"`
	SelectedOptionID string    `json:"selected_option_id"`
	IsCorrect        bool      `json:"is_correct"`
	PointsAwarded    int       `json:"points_awarded"`
	ResponseTimeMS   int64     `json:"response_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// LeaderboardEntry is one ranked row of a session's scoreboard.
type LeaderboardEntry struct {
	Rank             int    `json:"rank"`
	PlayerID         string `json:"player_id"`
	PlayerName       string `json:"player_name"`
	Score            int    `json:"score"`
	CorrectAnswers   int    `json:"correct_answers"`
	AnswersSubmitted int    `json:"answers_submitted"`
	TotalTimeMS      int64  `json:"total_response_time_ms"`
}

// PlayerSummary is the roster view shared by lobby broadcasts and the
// session REST resource.
type PlayerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Summarize converts a roster to its broadcast form.
func Summarize(players []Player) []PlayerSummary {
	out := make([]PlayerSummary, 0, len(players))
	for _, p := range players {
		out = append(out, PlayerSummary{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return out
}

// Summary returns the catalog view of the quiz.
func (q Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:            q.ID,
		Title:         q.Title,
		TopicPrompt:   q.TopicPrompt,
		QuestionCount: len(q.Questions),
		CreatedAt:     q.CreatedAt,
	}
}
