package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"livequiz/internal/domain"
)

var validate = validator.New()

// QuizStore persists quiz catalog entries.
type QuizStore interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	QuizByID(ctx context.Context, id string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// GenerateParams shapes a quiz generation request.
type GenerateParams struct {
	TopicPrompt   string `validate:"required,min=3,max=2000"`
	SourceText    string `validate:"max=20000"`
	QuestionCount int    `validate:"min=3,max=20"`
	Difficulty    string `validate:"oneof=easy medium hard"`
}

// UploadParams carries a source document for quiz generation.
type UploadParams struct {
	Filename      string
	Data          []byte
	TopicPrompt   string
	QuestionCount int
	Difficulty    string
}

// Generator produces quiz content from instructional material. The returned
// quiz carries title and questions only; persistence is a separate step.
type Generator interface {
	GenerateQuiz(ctx context.Context, params GenerateParams) (domain.Quiz, error)
	ExtractImageText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// QuizService manages the quiz catalog: authored quizzes, generated drafts
// and the listing the host picks from. Generated quizzes are returned to the
// caller for review and only persisted through CreateQuiz.
type QuizService struct {
	store QuizStore
	gen   Generator
	now   func() time.Time
}

func NewQuizService(store QuizStore, gen Generator) *QuizService {
	return &QuizService{store: store, gen: gen, now: time.Now}
}

// CreateQuiz validates and persists a fully formed quiz.
func (s *QuizService) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	quiz.ID = uuid.NewString()
	quiz.Title = strings.TrimSpace(quiz.Title)
	quiz.CreatedAt = s.now().UTC()
	if err := validateQuizContent(quiz); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.store.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// ListQuizzes returns catalog summaries, newest first.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error) {
	quizzes, err := s.store.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.QuizSummary, 0, len(quizzes))
	for _, quiz := range quizzes {
		summaries = append(summaries, quiz.Summary())
	}
	return summaries, nil
}

// Generate produces an unpersisted quiz draft for the given topic. Missing
// count and difficulty fall back to five medium questions.
func (s *QuizService) Generate(ctx context.Context, params GenerateParams) (domain.Quiz, error) {
	if s.gen == nil {
		return domain.Quiz{}, domain.ErrGeneratorUnavailable
	}
	if params.QuestionCount == 0 {
		params.QuestionCount = 5
	}
	if params.Difficulty == "" {
		params.Difficulty = "medium"
	}
	if err := validate.Struct(params); err != nil {
		return domain.Quiz{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	quiz, err := s.gen.GenerateQuiz(ctx, params)
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.TopicPrompt = params.TopicPrompt
	quiz.SourceText = params.SourceText
	if err := validateQuizContent(quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("generated quiz rejected: %w", err)
	}
	return quiz, nil
}

// GenerateFromUpload turns an uploaded document into a quiz draft. Plain
// text and markdown are used as source material directly; png, jpeg and
// webp images go through the generator's text extraction first. Returns the
// draft together with the source text it was generated from.
func (s *QuizService) GenerateFromUpload(ctx context.Context, params UploadParams) (domain.Quiz, string, error) {
	if s.gen == nil {
		return domain.Quiz{}, "", domain.ErrGeneratorUnavailable
	}
	if len(params.Data) == 0 {
		return domain.Quiz{}, "", fmt.Errorf("%w: uploaded file is empty", domain.ErrInvalidInput)
	}

	mtype := mimetype.Detect(params.Data)
	var source string
	switch {
	case mtype.Is("text/plain") || mtype.Is("text/markdown") || hasTextExtension(params.Filename):
		source = string(params.Data)
	case mtype.Is("image/png") || mtype.Is("image/jpeg") || mtype.Is("image/webp"):
		extracted, err := s.gen.ExtractImageText(ctx, params.Data, mtype.String())
		if err != nil {
			return domain.Quiz{}, "", err
		}
		source = extracted
	default:
		return domain.Quiz{}, "", fmt.Errorf("%w: unsupported file type %s, use txt, md or an image", domain.ErrInvalidInput, mtype.String())
	}

	prompt := strings.TrimSpace(params.TopicPrompt)
	if prompt == "" {
		prompt = "Generate a quiz from the uploaded content"
	}
	quiz, err := s.Generate(ctx, GenerateParams{
		TopicPrompt:   prompt,
		SourceText:    source,
		QuestionCount: params.QuestionCount,
		Difficulty:    params.Difficulty,
	})
	if err != nil {
		return domain.Quiz{}, "", err
	}
	return quiz, source, nil
}

func hasTextExtension(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".md")
}

// validateQuizContent checks structural rules plus the one relation tags
// cannot express: every correct_option_id names one of its options.
func validateQuizContent(quiz domain.Quiz) error {
	if err := validate.Struct(quiz); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	for i, question := range quiz.Questions {
		found := false
		for _, option := range question.Options {
			if option.ID == question.CorrectOptionID {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: question %d: correct_option_id %q is not an option", domain.ErrInvalidInput, i, question.CorrectOptionID)
		}
	}
	return nil
}
