package domain

// Websocket event names. Inbound events are client requests, outbound events
// are coordinator emissions; both travel in a {type, payload} envelope.
const (
	EventJoinRoom     = "join_room"
	EventStartGame    = "start_game"
	EventSubmitAnswer = "submit_answer"
	EventNextQuestion = "next_question"
	EventEndGame      = "end_game"

	EventJoinSuccess     = "join_success"
	EventError           = "error"
	EventLobbyUpdate     = "lobby_update"
	EventQuestionStarted = "question_started"
	EventAnswerAck       = "answer_ack"
	EventGameEnded       = "game_ended"
)

// Event is a routable outbound message: an event name plus its typed payload.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// JoinSuccessPayload acknowledges a successful join to the joining
// connection only.
type JoinSuccessPayload struct {
	Code       string `json:"code"`
	Role       string `json:"role"`
	PlayerID   string `json:"player_id,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
}

// ErrorPayload reports an operation failure to the originating connection.
type ErrorPayload struct {
	Detail string `json:"detail"`
}

// LobbyUpdatePayload broadcasts the current roster to the whole room.
type LobbyUpdatePayload struct {
	Code    string          `json:"code"`
	Status  SessionStatus   `json:"status"`
	Players []PlayerSummary `json:"players"`
}

// QuestionView is the broadcast-safe projection of a question. It never
// includes the correct option id.
type QuestionView struct {
	Prompt           string   `json:"prompt"`
	Options          []Option `json:"options"`
	TimeLimitSeconds int      `json:"time_limit_seconds"`
}

// QuestionStartedPayload announces the live question to the room. It is also
// replayed to individual reconnecting participants.
type QuestionStartedPayload struct {
	QuestionIndex  int          `json:"question_index"`
	Question       QuestionView `json:"question"`
	TotalQuestions int          `json:"total_questions"`
}

// AnswerAckPayload is delivered to the submitting connection only. Rejected
// submissions carry a reason and award nothing.
type AnswerAckPayload struct {
	Accepted   bool   `json:"accepted"`
	Reason     string `json:"reason,omitempty"`
	IsCorrect  bool   `json:"is_correct"`
	Points     int    `json:"points"`
	TotalScore int    `json:"total_score"`
}

// GameEndedPayload carries the final leaderboard, broadcast on finalization
// and replayed to participants who join a finished session.
type GameEndedPayload struct {
	Code        string             `json:"code"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// View returns the broadcast-safe projection of the question.
func (q Question) View() QuestionView {
	return QuestionView{
		Prompt:           q.Prompt,
		Options:          q.Options,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}
}
