package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"livequiz/internal/app"
	"livequiz/internal/domain"
	"livequiz/internal/infra/memory"
)

func TestCreateSessionInitializesLobby(t *testing.T) {
	ctx := context.Background()
	coord, _, _, _ := newTestCoordinator()

	session, err := coord.CreateSession(ctx, "quiz-1", "Quizmaster")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Status != domain.StatusLobby {
		t.Fatalf("expected lobby, got %s", session.Status)
	}
	if session.CurrentQuestionIndex != -1 {
		t.Fatalf("expected index -1 in lobby, got %d", session.CurrentQuestionIndex)
	}
	if len(session.Code) != 6 || strings.Trim(session.Code, "0123456789") != "" {
		t.Fatalf("expected 6-digit numeric code, got %q", session.Code)
	}

	if _, err := coord.CreateSession(ctx, "missing-quiz", "Quizmaster"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestGameFlowScoresAndFinishes(t *testing.T) {
	ctx := context.Background()
	coord, _, pub, clock := newTestCoordinator()

	session, err := coord.CreateSession(ctx, "quiz-1", "Quizmaster")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	mustJoin(t, coord, session.Code, "host-conn", domain.RoleHost, "")
	mustJoin(t, coord, session.Code, "alice-conn", domain.RolePlayer, "Alice")

	if err := coord.Start(ctx, session.Code, "host-conn"); err != nil {
		t.Fatalf("start: %v", err)
	}
	event, ok := pub.lastRoom(domain.EventQuestionStarted)
	if !ok {
		t.Fatal("expected question_started broadcast")
	}
	started := event.Payload.(domain.QuestionStartedPayload)
	if started.QuestionIndex != 0 || started.TotalQuestions != 2 {
		t.Fatalf("unexpected first question payload: %+v", started)
	}
	if started.Question.Prompt == "" || len(started.Question.Options) != 2 {
		t.Fatalf("question view incomplete: %+v", started.Question)
	}

	// Correct answer five seconds into a 20s question: 600 + 0.75*400.
	clock.Advance(5 * time.Second)
	submit := app.SubmitParams{Code: session.Code, ConnID: "alice-conn", QuestionIndex: 0, SelectedOptionID: "A"}
	if err := coord.SubmitAnswer(ctx, submit); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ack := lastAck(t, pub, "alice-conn")
	if !ack.Accepted || !ack.IsCorrect || ack.Points != 900 || ack.TotalScore != 900 {
		t.Fatalf("expected accepted 900-point ack, got %+v", ack)
	}

	// A duplicate submission is rejected and changes nothing.
	if err := coord.SubmitAnswer(ctx, submit); err != nil {
		t.Fatalf("duplicate submit: %v", err)
	}
	ack = lastAck(t, pub, "alice-conn")
	if ack.Accepted || ack.Reason != "already answered" {
		t.Fatalf("expected rejection ack, got %+v", ack)
	}
	entries, err := coord.Leaderboard(ctx, session.Code)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Score != 900 {
		t.Fatalf("duplicate must not change the score: %+v", entries)
	}

	if err := coord.Advance(ctx, session.Code, "host-conn"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	event, _ = pub.lastRoom(domain.EventQuestionStarted)
	if event.Payload.(domain.QuestionStartedPayload).QuestionIndex != 1 {
		t.Fatalf("expected question 1 broadcast, got %+v", event.Payload)
	}

	// Advancing past the last question finalizes the game.
	if err := coord.Advance(ctx, session.Code, "host-conn"); err != nil {
		t.Fatalf("final advance: %v", err)
	}
	event, ok = pub.lastRoom(domain.EventGameEnded)
	if !ok {
		t.Fatal("expected game_ended broadcast")
	}
	ended := event.Payload.(domain.GameEndedPayload)
	if len(ended.Leaderboard) != 1 || ended.Leaderboard[0].Score != 900 {
		t.Fatalf("unexpected final leaderboard: %+v", ended.Leaderboard)
	}

	final, _, err := coord.SessionView(ctx, session.Code)
	if err != nil {
		t.Fatalf("session view: %v", err)
	}
	if final.Status != domain.StatusFinished || final.EndedAt == nil {
		t.Fatalf("expected finished session with end time, got %+v", final)
	}

	err = coord.SubmitAnswer(ctx, app.SubmitParams{Code: session.Code, ConnID: "alice-conn", QuestionIndex: 1, SelectedOptionID: "B"})
	if !errors.Is(err, domain.ErrSessionState) {
		t.Fatalf("expected state error after finish, got %v", err)
	}
}

func TestIncorrectAnswerScoresZero(t *testing.T) {
	ctx := context.Background()
	coord, session, pub, clock := startedGame(t)

	clock.Advance(2 * time.Second)
	if err := coord.SubmitAnswer(ctx, app.SubmitParams{Code: session.Code, ConnID: "alice-conn", QuestionIndex: 0, SelectedOptionID: "B"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ack := lastAck(t, pub, "alice-conn")
	if !ack.Accepted || ack.IsCorrect || ack.Points != 0 || ack.TotalScore != 0 {
		t.Fatalf("expected accepted zero-point ack, got %+v", ack)
	}
}

func TestJoinValidation(t *testing.T) {
	ctx := context.Background()
	coord, _, _, _ := newTestCoordinator()

	err := coord.Join(ctx, app.JoinParams{Code: "123", ConnID: "c1", Role: domain.RolePlayer, DisplayName: "Alice"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid code error, got %v", err)
	}

	err = coord.Join(ctx, app.JoinParams{Code: "999999", ConnID: "c1", Role: domain.RolePlayer, DisplayName: "Alice"})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}

	session, err := coord.CreateSession(ctx, "quiz-1", "Quizmaster")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	err = coord.Join(ctx, app.JoinParams{Code: session.Code, ConnID: "c1", Role: domain.RolePlayer, DisplayName: "A"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected name too short, got %v", err)
	}
}

func TestNonHostCannotControlSession(t *testing.T) {
	ctx := context.Background()
	coord, _, _, _ := newTestCoordinator()

	session, err := coord.CreateSession(ctx, "quiz-1", "Quizmaster")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	mustJoin(t, coord, session.Code, "host-conn", domain.RoleHost, "")
	mustJoin(t, coord, session.Code, "alice-conn", domain.RolePlayer, "Alice")

	for name, op := range map[string]func() error{
		"start":   func() error { return coord.Start(ctx, session.Code, "alice-conn") },
		"advance": func() error { return coord.Advance(ctx, session.Code, "alice-conn") },
		"end":     func() error { return coord.End(ctx, session.Code, "alice-conn") },
	} {
		if err := op(); !errors.Is(err, domain.ErrNotHost) {
			t.Fatalf("%s by non-host: expected ErrNotHost, got %v", name, err)
		}
	}

	got, _, err := coord.SessionView(ctx, session.Code)
	if err != nil {
		t.Fatalf("session view: %v", err)
	}
	if got.Status != domain.StatusLobby || got.CurrentQuestionIndex != -1 {
		t.Fatalf("rejected operations must not change state: %+v", got)
	}
}

func TestHostHandleLastWriterWins(t *testing.T) {
	ctx := context.Background()
	coord, _, _, _ := newTestCoordinator()

	session, err := coord.CreateSession(ctx, "quiz-1", "Quizmaster")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	mustJoin(t, coord, session.Code, "host-old", domain.RoleHost, "")
	mustJoin(t, coord, session.Code, "host-new", domain.RoleHost, "")

	if err := coord.Start(ctx, session.Code, "host-old"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("stale host handle must be rejected, got %v", err)
	}
	if err := coord.Start(ctx, session.Code, "host-new"); err != nil {
		t.Fatalf("current host start: %v", err)
	}
}

func TestReconnectResumesIdentityAndLiveQuestion(t *testing.T) {
	ctx := context.Background()
	coord, session, pub, clock := startedGame(t)

	clock.Advance(3 * time.Second)
	if err := coord.SubmitAnswer(ctx, app.SubmitParams{Code: session.Code, ConnID: "alice-conn", QuestionIndex: 0, SelectedOptionID: "A"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	firstAck := lastAck(t, pub, "alice-conn")
	if !firstAck.Accepted {
		t.Fatalf("expected accepted answer, got %+v", firstAck)
	}

	event, ok := pub.lastConn("alice-conn", domain.EventJoinSuccess)
	if !ok {
		t.Fatal("expected join_success for the first connection")
	}
	originalID := event.Payload.(domain.JoinSuccessPayload).PlayerID

	if err := coord.Disconnect(ctx, "alice-conn"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	// Rejoining under the same name, different case, resumes the identity.
	mustJoin(t, coord, session.Code, "alice-conn-2", domain.RolePlayer, "ALICE")

	event, ok = pub.lastConn("alice-conn-2", domain.EventJoinSuccess)
	if !ok {
		t.Fatal("expected join_success for the reconnect")
	}
	rejoined := event.Payload.(domain.JoinSuccessPayload)
	if rejoined.PlayerID != originalID {
		t.Fatalf("expected same player identity, got %q then %q", originalID, rejoined.PlayerID)
	}

	event, ok = pub.lastConn("alice-conn-2", domain.EventQuestionStarted)
	if !ok {
		t.Fatal("expected live question resync on reconnect")
	}
	if event.Payload.(domain.QuestionStartedPayload).QuestionIndex != 0 {
		t.Fatalf("expected the current question, got %+v", event.Payload)
	}

	_, roster, err := coord.SessionView(ctx, session.Code)
	if err != nil {
		t.Fatalf("session view: %v", err)
	}
	if len(roster) != 1 || roster[0].Score != firstAck.TotalScore {
		t.Fatalf("score must survive the reconnect: %+v", roster)
	}
}

func TestJoinFinishedSessionGetsLeaderboard(t *testing.T) {
	ctx := context.Background()
	coord, session, pub, _ := startedGame(t)

	if err := coord.End(ctx, session.Code, "host-conn"); err != nil {
		t.Fatalf("end: %v", err)
	}

	mustJoin(t, coord, session.Code, "late-conn", domain.RolePlayer, "Late")
	event, ok := pub.lastConn("late-conn", domain.EventGameEnded)
	if !ok {
		t.Fatal("expected game_ended snapshot for the late joiner")
	}
	if event.Payload.(domain.GameEndedPayload).Code != session.Code {
		t.Fatalf("snapshot for wrong session: %+v", event.Payload)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	coord, session, pub, _ := startedGame(t)

	if err := coord.End(ctx, session.Code, "host-conn"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := coord.End(ctx, session.Code, "host-conn"); err != nil {
		t.Fatalf("second end must be a no-op, got %v", err)
	}
	if got := pub.roomCount(domain.EventGameEnded); got != 1 {
		t.Fatalf("expected exactly one game_ended broadcast, got %d", got)
	}

	if err := coord.Advance(ctx, session.Code, "host-conn"); !errors.Is(err, domain.ErrSessionState) {
		t.Fatalf("advance after finish: expected state error, got %v", err)
	}
}

func TestSubmitAnswerGuards(t *testing.T) {
	ctx := context.Background()
	coord, _, _, _ := newTestCoordinator()

	session, err := coord.CreateSession(ctx, "quiz-1", "Quizmaster")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	mustJoin(t, coord, session.Code, "host-conn", domain.RoleHost, "")
	mustJoin(t, coord, session.Code, "alice-conn", domain.RolePlayer, "Alice")

	err = coord.SubmitAnswer(ctx, app.SubmitParams{Code: session.Code, ConnID: "alice-conn", QuestionIndex: 0, SelectedOptionID: "A"})
	if !errors.Is(err, domain.ErrSessionState) {
		t.Fatalf("submit before start: expected state error, got %v", err)
	}

	if err := coord.Start(ctx, session.Code, "host-conn"); err != nil {
		t.Fatalf("start: %v", err)
	}

	err = coord.SubmitAnswer(ctx, app.SubmitParams{Code: session.Code, ConnID: "stranger-conn", QuestionIndex: 0, SelectedOptionID: "A"})
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("submit from unknown conn: expected player error, got %v", err)
	}

	err = coord.SubmitAnswer(ctx, app.SubmitParams{Code: session.Code, ConnID: "alice-conn", QuestionIndex: 1, SelectedOptionID: "A"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("stale index: expected invalid input, got %v", err)
	}
}

func TestCreateSessionCodeSpaceExhausted(t *testing.T) {
	ctx := context.Background()
	store := &collidingStore{Store: memory.NewStore()}
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()}), 5*time.Minute)
	coord := app.NewCoordinator(store, repo, app.NewRegistry(), &capturePublisher{})

	if _, err := coord.CreateSession(ctx, "quiz-1", "Quizmaster"); !errors.Is(err, domain.ErrCodeSpaceExhausted) {
		t.Fatalf("expected code space exhausted, got %v", err)
	}
}

func TestDuplicateAnswerStoreBackstop(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()}), 5*time.Minute)
	pub := &capturePublisher{}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}

	first := app.NewCoordinatorWithClock(store, repo, app.NewRegistry(), pub, clock.Now)
	session, err := first.CreateSession(ctx, "quiz-1", "Quizmaster")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	mustJoin(t, first, session.Code, "host-conn", domain.RoleHost, "")
	mustJoin(t, first, session.Code, "alice-conn", domain.RolePlayer, "Alice")
	if err := first.Start(ctx, session.Code, "host-conn"); err != nil {
		t.Fatalf("start: %v", err)
	}
	submit := app.SubmitParams{Code: session.Code, ConnID: "alice-conn", QuestionIndex: 0, SelectedOptionID: "A"}
	if err := first.SubmitAnswer(ctx, submit); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// A coordinator with a blank registry simulates lost runtime state: the
	// store's answer uniqueness still rejects the replay.
	second := app.NewCoordinatorWithClock(store, repo, app.NewRegistry(), pub, clock.Now)
	if err := second.SubmitAnswer(ctx, submit); err != nil {
		t.Fatalf("replayed submit: %v", err)
	}
	ack := lastAck(t, pub, "alice-conn")
	if ack.Accepted || ack.Reason != "already answered" {
		t.Fatalf("expected store-backed rejection, got %+v", ack)
	}

	entries, err := second.Leaderboard(ctx, session.Code)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Score != 1000 {
		t.Fatalf("replay must not double-score: %+v", entries)
	}
}

func newTestCoordinator() (*app.Coordinator, *memory.Store, *capturePublisher, *fakeClock) {
	store := memory.NewStore()
	repo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": twoQuestionQuiz()}), 5*time.Minute)
	pub := &capturePublisher{}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	coord := app.NewCoordinatorWithClock(store, repo, app.NewRegistry(), pub, clock.Now)
	return coord, store, pub, clock
}

func startedGame(t *testing.T) (*app.Coordinator, domain.Session, *capturePublisher, *fakeClock) {
	t.Helper()
	coord, _, pub, clock := newTestCoordinator()
	session, err := coord.CreateSession(context.Background(), "quiz-1", "Quizmaster")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	mustJoin(t, coord, session.Code, "host-conn", domain.RoleHost, "")
	mustJoin(t, coord, session.Code, "alice-conn", domain.RolePlayer, "Alice")
	if err := coord.Start(context.Background(), session.Code, "host-conn"); err != nil {
		t.Fatalf("start: %v", err)
	}
	return coord, session, pub, clock
}

func mustJoin(t *testing.T, coord *app.Coordinator, code, connID, role, name string) {
	t.Helper()
	err := coord.Join(context.Background(), app.JoinParams{Code: code, ConnID: connID, Role: role, DisplayName: name})
	if err != nil {
		t.Fatalf("join %s: %v", connID, err)
	}
}

func lastAck(t *testing.T, pub *capturePublisher, connID string) domain.AnswerAckPayload {
	t.Helper()
	event, ok := pub.lastConn(connID, domain.EventAnswerAck)
	if !ok {
		t.Fatal("expected an answer_ack")
	}
	return event.Payload.(domain.AnswerAckPayload)
}

func twoQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Capitals",
		Questions: []domain.Question{
			{
				Prompt: "Capital of France?",
				Options: []domain.Option{
					{ID: "A", Text: "Paris"},
					{ID: "B", Text: "Rome"},
				},
				CorrectOptionID:  "A",
				TimeLimitSeconds: 20,
			},
			{
				Prompt: "Capital of Japan?",
				Options: []domain.Option{
					{ID: "A", Text: "Seoul"},
					{ID: "B", Text: "Tokyo"},
				},
				CorrectOptionID:  "B",
				TimeLimitSeconds: 30,
			},
		},
	}
}

type collidingStore struct {
	app.Store
}

func (s *collidingStore) SessionByCode(_ context.Context, code string) (domain.Session, error) {
	return domain.Session{ID: "taken", Code: code}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type roomEvent struct {
	code  string
	event domain.Event
}

type connEvent struct {
	connID string
	event  domain.Event
}

// capturePublisher records fan-out calls for assertions.
type capturePublisher struct {
	mu   sync.Mutex
	room []roomEvent
	conn []connEvent
}

func (p *capturePublisher) ToRoom(code string, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.room = append(p.room, roomEvent{code: code, event: event})
}

func (p *capturePublisher) ToConn(connID string, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = append(p.conn, connEvent{connID: connID, event: event})
}

func (p *capturePublisher) lastRoom(eventType string) (domain.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.room) - 1; i >= 0; i-- {
		if p.room[i].event.Type == eventType {
			return p.room[i].event, true
		}
	}
	return domain.Event{}, false
}

func (p *capturePublisher) lastConn(connID, eventType string) (domain.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.conn) - 1; i >= 0; i-- {
		if p.conn[i].connID == connID && p.conn[i].event.Type == eventType {
			return p.conn[i].event, true
		}
	}
	return domain.Event{}, false
}

func (p *capturePublisher) roomCount(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, re := range p.room {
		if re.event.Type == eventType {
			count++
		}
	}
	return count
}
