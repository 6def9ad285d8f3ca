package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"livequiz/internal/domain"
)

// Store keeps quizzes, sessions, players and answers in process memory. It
// mirrors the relational layout and enforces the same uniqueness rules as
// the Postgres store, which makes it both the default backend when no
// database is configured and the fixture coordinator tests run against.
type Store struct {
	mu       sync.RWMutex
	quizzes  map[string]domain.Quiz
	sessions map[string]domain.Session
	byCode   map[string]string
	players  map[string][]domain.Player
	answers  map[string][]domain.Answer
}

func NewStore() *Store {
	return &Store{
		quizzes:  make(map[string]domain.Quiz),
		sessions: make(map[string]domain.Session),
		byCode:   make(map[string]string),
		players:  make(map[string][]domain.Player),
		answers:  make(map[string][]domain.Answer),
	}
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quiz.ID]; ok {
		return domain.ErrDuplicateRecord
	}
	s.quizzes[quiz.ID] = quiz
	return nil
}

func (s *Store) QuizByID(_ context.Context, id string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		out = append(out, quiz)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// LoadQuiz satisfies QuizLoader so the TTL cache can front this store too.
func (s *Store) LoadQuiz(ctx context.Context, id string) (domain.Quiz, error) {
	return s.QuizByID(ctx, id)
}

func (s *Store) CreateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byCode[session.Code]; ok {
		return domain.ErrDuplicateRecord
	}
	s.sessions[session.ID] = session
	s.byCode[session.Code] = session.ID
	return nil
}

func (s *Store) SessionByCode(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s.sessions[id], nil
}

func (s *Store) UpdateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) CreatePlayer(_ context.Context, player domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.players[player.SessionID] {
		if strings.EqualFold(existing.Name, player.Name) {
			return domain.ErrDuplicateRecord
		}
	}
	s.players[player.SessionID] = append(s.players[player.SessionID], player)
	return nil
}

func (s *Store) UpdatePlayer(_ context.Context, player domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := s.players[player.SessionID]
	for i := range roster {
		if roster[i].ID == player.ID {
			roster[i] = player
			return nil
		}
	}
	return domain.ErrPlayerNotFound
}

func (s *Store) PlayerByName(_ context.Context, sessionID, name string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, player := range s.players[sessionID] {
		if strings.EqualFold(player.Name, name) {
			return player, nil
		}
	}
	return domain.Player{}, domain.ErrPlayerNotFound
}

func (s *Store) PlayerByConn(_ context.Context, sessionID, connID string) (domain.Player, error) {
	if connID == "" {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, player := range s.players[sessionID] {
		if player.ConnID == connID {
			return player, nil
		}
	}
	return domain.Player{}, domain.ErrPlayerNotFound
}

func (s *Store) PlayersBySession(_ context.Context, sessionID string) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roster := s.players[sessionID]
	out := make([]domain.Player, len(roster))
	copy(out, roster)
	return out, nil
}

func (s *Store) ClearPlayerConn(_ context.Context, connID string) error {
	if connID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sessionID, roster := range s.players {
		for i := range roster {
			if roster[i].ConnID == connID {
				roster[i].ConnID = ""
				s.players[sessionID] = roster
			}
		}
	}
	return nil
}

func (s *Store) CreateAnswer(_ context.Context, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.answers[answer.SessionID] {
		if existing.PlayerID == answer.PlayerID && existing.QuestionIndex == answer.QuestionIndex {
			return domain.ErrDuplicateAnswer
		}
	}
	s.answers[answer.SessionID] = append(s.answers[answer.SessionID], answer)
	return nil
}

func (s *Store) AnswersBySession(_ context.Context, sessionID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recorded := s.answers[sessionID]
	out := make([]domain.Answer, len(recorded))
	copy(out, recorded)
	return out, nil
}
