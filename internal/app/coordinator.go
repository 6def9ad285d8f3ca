package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"livequiz/internal/domain"
)

const (
	codeLength   = 6
	codeAttempts = 30

	minNameLen = 2
	maxNameLen = 40
)

// Store persists sessions, players and answers. Implementations enforce the
// uniqueness rules the coordinator relies on: session codes, one player name
// per session (case-insensitive), and one answer per player and question.
type Store interface {
	CreateSession(ctx context.Context, session domain.Session) error
	SessionByCode(ctx context.Context, code string) (domain.Session, error)
	UpdateSession(ctx context.Context, session domain.Session) error

	CreatePlayer(ctx context.Context, player domain.Player) error
	UpdatePlayer(ctx context.Context, player domain.Player) error
	PlayerByName(ctx context.Context, sessionID, name string) (domain.Player, error)
	PlayerByConn(ctx context.Context, sessionID, connID string) (domain.Player, error)
	PlayersBySession(ctx context.Context, sessionID string) ([]domain.Player, error)
	ClearPlayerConn(ctx context.Context, connID string) error

	CreateAnswer(ctx context.Context, answer domain.Answer) error
	AnswersBySession(ctx context.Context, sessionID string) ([]domain.Answer, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Publisher fans out events to live connections. Delivery is best-effort and
// must never block: a slow or dead connection is the connection's problem,
// not the session's.
type Publisher interface {
	ToRoom(code string, event domain.Event)
	ToConn(connID string, event domain.Event)
}

// Coordinator drives the live session protocol: joins, the host-paced
// question flow, answer scoring and finalization. Every operation on one
// session code runs under that code's runtime lock, so per-session effects
// are strictly ordered while distinct sessions proceed independently.
type Coordinator struct {
	store    Store
	quizzes  QuizRepository
	registry *Registry
	publish  Publisher
	now      func() time.Time
}

func NewCoordinator(store Store, quizzes QuizRepository, registry *Registry, publish Publisher) *Coordinator {
	return NewCoordinatorWithClock(store, quizzes, registry, publish, time.Now)
}

// NewCoordinatorWithClock allows deterministic timestamps in tests.
func NewCoordinatorWithClock(store Store, quizzes QuizRepository, registry *Registry, publish Publisher, now func() time.Time) *Coordinator {
	return &Coordinator{store: store, quizzes: quizzes, registry: registry, publish: publish, now: now}
}

// CreateSession opens a new lobby for the quiz under a freshly allocated
// join code. Allocation samples the code space and re-checks the store; a
// bounded number of collisions aborts with ErrCodeSpaceExhausted rather than
// looping forever.
func (c *Coordinator) CreateSession(ctx context.Context, quizID, hostName string) (domain.Session, error) {
	if _, err := c.quizzes.GetQuiz(ctx, quizID); err != nil {
		return domain.Session{}, err
	}

	session := domain.Session{
		ID:                   uuid.NewString(),
		HostName:             strings.TrimSpace(hostName),
		QuizID:               quizID,
		Status:               domain.StatusLobby,
		CurrentQuestionIndex: -1,
		CreatedAt:            c.now().UTC(),
	}
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return domain.Session{}, err
		}
		if _, err := c.store.SessionByCode(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Session{}, err
		}

		session.Code = code
		err = c.store.CreateSession(ctx, session)
		if errors.Is(err, domain.ErrDuplicateRecord) {
			continue
		}
		if err != nil {
			return domain.Session{}, err
		}
		return session, nil
	}
	return domain.Session{}, domain.ErrCodeSpaceExhausted
}

// JoinParams identifies who joins which session over which connection.
type JoinParams struct {
	Code        string
	ConnID      string
	Role        string
	DisplayName string
}

// Join attaches a connection to a session. Hosts take over the host handle
// (last writer wins); players are found or created by case-insensitive name
// so a reconnect under the same name resumes the same identity. The joining
// connection receives join_success, the room receives the updated roster,
// and the joiner alone is resynchronized with the session's current state.
func (c *Coordinator) Join(ctx context.Context, p JoinParams) error {
	code := strings.TrimSpace(p.Code)
	if len(code) != codeLength {
		return fmt.Errorf("%w: invalid session code", domain.ErrInvalidInput)
	}

	st := c.registry.state(code)
	st.mu.Lock()
	defer st.mu.Unlock()

	session, err := c.store.SessionByCode(ctx, code)
	if err != nil {
		return err
	}

	if strings.EqualFold(strings.TrimSpace(p.Role), domain.RoleHost) {
		st.hostConnID = p.ConnID
		c.publish.ToConn(p.ConnID, domain.Event{
			Type:    domain.EventJoinSuccess,
			Payload: domain.JoinSuccessPayload{Code: code, Role: domain.RoleHost},
		})
	} else {
		name := strings.TrimSpace(p.DisplayName)
		if len([]rune(name)) < minNameLen {
			return fmt.Errorf("%w: name too short", domain.ErrInvalidInput)
		}
		if len([]rune(name)) > maxNameLen {
			return fmt.Errorf("%w: name too long", domain.ErrInvalidInput)
		}

		player, err := c.store.PlayerByName(ctx, session.ID, name)
		switch {
		case err == nil:
			player.ConnID = p.ConnID
			if err := c.store.UpdatePlayer(ctx, player); err != nil {
				return err
			}
		case errors.Is(err, domain.ErrPlayerNotFound):
			player = domain.Player{
				ID:        uuid.NewString(),
				SessionID: session.ID,
				ConnID:    p.ConnID,
				Name:      name,
				JoinedAt:  c.now().UTC(),
			}
			if err := c.store.CreatePlayer(ctx, player); err != nil {
				return err
			}
		default:
			return err
		}

		c.publish.ToConn(p.ConnID, domain.Event{
			Type: domain.EventJoinSuccess,
			Payload: domain.JoinSuccessPayload{
				Code:       code,
				Role:       domain.RolePlayer,
				PlayerID:   player.ID,
				PlayerName: player.Name,
			},
		})
	}

	if err := c.broadcastLobby(ctx, session); err != nil {
		return err
	}
	return c.resyncLocked(ctx, session, p.ConnID)
}

// Start moves a lobby into play: status flips to in_progress, the index
// lands on question zero, the round clock starts, and the first question is
// broadcast to the room.
func (c *Coordinator) Start(ctx context.Context, code, connID string) error {
	st := c.registry.state(code)
	st.mu.Lock()
	defer st.mu.Unlock()

	session, err := c.store.SessionByCode(ctx, code)
	if err != nil {
		return err
	}
	if st.hostConnID != connID {
		return fmt.Errorf("%w: only the host can start the game", domain.ErrNotHost)
	}
	if session.Status != domain.StatusLobby {
		return fmt.Errorf("%w: session is %s", domain.ErrSessionState, session.Status)
	}
	quiz, err := c.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return err
	}

	now := c.now().UTC()
	session.Status = domain.StatusInProgress
	session.CurrentQuestionIndex = 0
	session.StartedAt = &now
	if err := c.store.UpdateSession(ctx, session); err != nil {
		return err
	}

	st.reset(now)
	c.publish.ToRoom(code, questionStartedEvent(0, quiz))
	return nil
}

// SubmitParams carries one answer submission.
type SubmitParams struct {
	Code             string
	ConnID           string
	QuestionIndex    int
	SelectedOptionID string
}

// SubmitAnswer scores a player's submission against the live question and
// acknowledges the outcome to the submitting connection only; the room never
// learns who answered what. A repeat submission for the same question is
// rejected with an acknowledgement and changes nothing.
func (c *Coordinator) SubmitAnswer(ctx context.Context, p SubmitParams) error {
	st := c.registry.state(p.Code)
	st.mu.Lock()
	defer st.mu.Unlock()

	session, err := c.store.SessionByCode(ctx, p.Code)
	if err != nil {
		return err
	}
	if session.Status != domain.StatusInProgress {
		return fmt.Errorf("%w: game is not in progress", domain.ErrSessionState)
	}
	player, err := c.store.PlayerByConn(ctx, session.ID, p.ConnID)
	if err != nil {
		return err
	}
	quiz, err := c.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return err
	}
	if p.QuestionIndex != session.CurrentQuestionIndex || p.QuestionIndex < 0 || p.QuestionIndex >= len(quiz.Questions) {
		return fmt.Errorf("%w: question %d is not live", domain.ErrInvalidInput, p.QuestionIndex)
	}
	if st.hasAnswered(p.QuestionIndex, player.ID) {
		c.ack(p.ConnID, domain.AnswerAckPayload{Accepted: false, Reason: "already answered"})
		return nil
	}

	question := quiz.Questions[p.QuestionIndex]
	selected := strings.TrimSpace(p.SelectedOptionID)
	now := c.now()
	elapsed := st.elapsedSince(now)
	correct := selected == question.CorrectOptionID
	points := 0
	if correct {
		points = scoreAnswer(elapsed, float64(question.TimeLimitSeconds))
	}

	answer := domain.Answer{
		ID:               uuid.NewString(),
		SessionID:        session.ID,
		PlayerID:         player.ID,
		QuestionIndex:    p.QuestionIndex,
		SelectedOptionID: selected,
		IsCorrect:        correct,
		PointsAwarded:    points,
		ResponseTimeMS:   int64(elapsed * 1000),
		CreatedAt:        now.UTC(),
	}
	if err := c.store.CreateAnswer(ctx, answer); err != nil {
		// The storage uniqueness constraint is the backstop when the
		// registry lost its answered-set: same rejection, no mutation.
		if errors.Is(err, domain.ErrDuplicateAnswer) {
			st.markAnswered(p.QuestionIndex, player.ID)
			c.ack(p.ConnID, domain.AnswerAckPayload{Accepted: false, Reason: "already answered"})
			return nil
		}
		return err
	}

	player.Score += points
	if err := c.store.UpdatePlayer(ctx, player); err != nil {
		return err
	}
	st.markAnswered(p.QuestionIndex, player.ID)

	c.ack(p.ConnID, domain.AnswerAckPayload{
		Accepted:   true,
		IsCorrect:  correct,
		Points:     points,
		TotalScore: player.Score,
	})
	return nil
}

// Advance moves an in-progress session to the next question, or finalizes it
// when the question sequence is exhausted.
func (c *Coordinator) Advance(ctx context.Context, code, connID string) error {
	st := c.registry.state(code)
	st.mu.Lock()
	defer st.mu.Unlock()

	session, err := c.store.SessionByCode(ctx, code)
	if err != nil {
		return err
	}
	// Finished sessions have no runtime entry, so the state check has to come
	// before the host check or a late advance would misreport as ErrNotHost.
	if session.Status == domain.StatusFinished {
		return fmt.Errorf("%w: session is %s", domain.ErrSessionState, session.Status)
	}
	if st.hostConnID != connID {
		return fmt.Errorf("%w: only the host can advance the game", domain.ErrNotHost)
	}
	if session.Status != domain.StatusInProgress {
		return fmt.Errorf("%w: session is %s", domain.ErrSessionState, session.Status)
	}
	quiz, err := c.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return err
	}

	next := session.CurrentQuestionIndex + 1
	if next >= len(quiz.Questions) {
		return c.finalizeLocked(ctx, session)
	}

	session.CurrentQuestionIndex = next
	if err := c.store.UpdateSession(ctx, session); err != nil {
		return err
	}
	st.beginQuestion(c.now().UTC())
	c.publish.ToRoom(code, questionStartedEvent(next, quiz))
	return nil
}

// End finalizes an in-progress session immediately, regardless of remaining
// questions. Ending an already finished session is a no-op.
func (c *Coordinator) End(ctx context.Context, code, connID string) error {
	st := c.registry.state(code)
	st.mu.Lock()
	defer st.mu.Unlock()

	session, err := c.store.SessionByCode(ctx, code)
	if err != nil {
		return err
	}
	// A finished session has already dropped its runtime entry, host handle
	// included; the idempotent no-op must short-circuit before the host check.
	if session.Status == domain.StatusFinished {
		return nil
	}
	if st.hostConnID != connID {
		return fmt.Errorf("%w: only the host can end the game", domain.ErrNotHost)
	}
	if session.Status != domain.StatusInProgress {
		return fmt.Errorf("%w: session is %s", domain.ErrSessionState, session.Status)
	}
	return c.finalizeLocked(ctx, session)
}

// Disconnect detaches a dropped connection from whichever player holds it.
// The clear is conditional on the handle still matching, so a reconnect that
// already claimed a new connection is never undone by the old one's teardown.
// The player record and score always survive.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) error {
	return c.store.ClearPlayerConn(ctx, connID)
}

// Leaderboard computes the current standings for a session in any state.
func (c *Coordinator) Leaderboard(ctx context.Context, code string) ([]domain.LeaderboardEntry, error) {
	session, err := c.store.SessionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return c.leaderboardByID(ctx, session.ID)
}

// SessionView returns the session and its roster.
func (c *Coordinator) SessionView(ctx context.Context, code string) (domain.Session, []domain.PlayerSummary, error) {
	session, err := c.store.SessionByCode(ctx, code)
	if err != nil {
		return domain.Session{}, nil, err
	}
	players, err := c.store.PlayersBySession(ctx, session.ID)
	if err != nil {
		return domain.Session{}, nil, err
	}
	return session, domain.Summarize(players), nil
}

// finalizeLocked stamps the terminal state, persists it, and only then
// broadcasts the final leaderboard. The caller holds the session's runtime
// lock; the runtime entry is dropped because a finished session needs no
// coordination state.
func (c *Coordinator) finalizeLocked(ctx context.Context, session domain.Session) error {
	if session.Status == domain.StatusFinished {
		return nil
	}
	now := c.now().UTC()
	session.Status = domain.StatusFinished
	session.EndedAt = &now
	if err := c.store.UpdateSession(ctx, session); err != nil {
		return err
	}

	entries, err := c.leaderboardByID(ctx, session.ID)
	if err != nil {
		return err
	}
	c.publish.ToRoom(session.Code, domain.Event{
		Type:    domain.EventGameEnded,
		Payload: domain.GameEndedPayload{Code: session.Code, Leaderboard: entries},
	})
	c.registry.drop(session.Code)
	return nil
}

// resyncLocked replays the session's current truth to a single connection:
// the live question while in progress, the final leaderboard when finished,
// nothing beyond the roster while in the lobby.
func (c *Coordinator) resyncLocked(ctx context.Context, session domain.Session, connID string) error {
	switch {
	case session.Status == domain.StatusInProgress && session.CurrentQuestionIndex >= 0:
		quiz, err := c.quizzes.GetQuiz(ctx, session.QuizID)
		if err != nil {
			return err
		}
		if session.CurrentQuestionIndex >= len(quiz.Questions) {
			return nil
		}
		c.publish.ToConn(connID, questionStartedEvent(session.CurrentQuestionIndex, quiz))
	case session.Status == domain.StatusFinished:
		entries, err := c.leaderboardByID(ctx, session.ID)
		if err != nil {
			return err
		}
		c.publish.ToConn(connID, domain.Event{
			Type:    domain.EventGameEnded,
			Payload: domain.GameEndedPayload{Code: session.Code, Leaderboard: entries},
		})
	}
	return nil
}

func (c *Coordinator) broadcastLobby(ctx context.Context, session domain.Session) error {
	players, err := c.store.PlayersBySession(ctx, session.ID)
	if err != nil {
		return err
	}
	c.publish.ToRoom(session.Code, domain.Event{
		Type: domain.EventLobbyUpdate,
		Payload: domain.LobbyUpdatePayload{
			Code:    session.Code,
			Status:  session.Status,
			Players: domain.Summarize(players),
		},
	})
	return nil
}

func (c *Coordinator) leaderboardByID(ctx context.Context, sessionID string) ([]domain.LeaderboardEntry, error) {
	players, err := c.store.PlayersBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	answers, err := c.store.AnswersBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return buildLeaderboard(players, answers), nil
}

func (c *Coordinator) ack(connID string, payload domain.AnswerAckPayload) {
	c.publish.ToConn(connID, domain.Event{Type: domain.EventAnswerAck, Payload: payload})
}

func questionStartedEvent(index int, quiz domain.Quiz) domain.Event {
	return domain.Event{
		Type: domain.EventQuestionStarted,
		Payload: domain.QuestionStartedPayload{
			QuestionIndex:  index,
			Question:       quiz.Questions[index].View(),
			TotalQuestions: len(quiz.Questions),
		},
	}
}

// randomCode samples one candidate join code: six decimal digits with
// leading zeros preserved.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate session code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
