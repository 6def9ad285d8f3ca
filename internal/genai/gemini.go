// Package genai implements the quiz generation collaborator against the
// Gemini REST API.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"livequiz/internal/app"
	"livequiz/internal/domain"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	maxSourceChars = 12000
	temperature    = 0.4
)

// DefaultModels are tried in order until one answers. Newer models go first;
// the older ones absorb quota exhaustion and regional availability gaps.
var DefaultModels = []string{
	"gemini-2.0-flash",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
}

// Client calls Gemini over plain HTTP. It satisfies the app.Generator
// interface; nothing else in the repository knows which vendor sits here.
type Client struct {
	apiKey  string
	models  []string
	baseURL string
	http    *http.Client
}

// Option tweaks client construction, used by tests to point at a fake server.
type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

func WithModels(models []string) Option {
	return func(c *Client) {
		if len(models) > 0 {
			c.models = models
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		models:  DefaultModels,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateContentRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateQuiz asks the model for a complete quiz as strict JSON and decodes
// it into domain content. The caller revalidates the result; this client only
// guarantees shape, not pedagogy.
func (c *Client) GenerateQuiz(ctx context.Context, params app.GenerateParams) (domain.Quiz, error) {
	req := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(params)}}}},
		GenerationConfig: &generationConfig{
			Temperature:      temperature,
			ResponseMimeType: "application/json",
		},
	}

	text, err := c.generate(ctx, req)
	if err != nil {
		return domain.Quiz{}, err
	}

	var quiz domain.Quiz
	if err := json.Unmarshal([]byte(text), &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("decode generated quiz: %w", err)
	}
	return quiz, nil
}

// ExtractImageText runs OCR-style extraction over an uploaded image.
func (c *Client) ExtractImageText(ctx context.Context, data []byte, mimeType string) (string, error) {
	req := generateContentRequest{
		Contents: []content{{Parts: []part{
			{Text: "Extract all readable text from this image. Return the text only, no commentary."},
			{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
		}}},
		GenerationConfig: &generationConfig{Temperature: 0},
	}
	return c.generate(ctx, req)
}

// generate tries each configured model in order and returns the first
// candidate text. Model-level failures fall through to the next model; the
// last failure is returned when all are exhausted.
func (c *Client) generate(ctx context.Context, req generateContentRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	var lastErr error
	for _, model := range c.models {
		text, err := c.callModel(ctx, model, body)
		if err == nil {
			return text, nil
		}
		lastErr = fmt.Errorf("model %s: %w", model, err)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no generation models configured")
	}
	return "", lastErr
}

func (c *Client) callModel(ctx context.Context, model string, body []byte) (string, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil {
			return "", fmt.Errorf("status %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty completion")
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

func buildPrompt(params app.GenerateParams) string {
	source := params.SourceText
	if len(source) > maxSourceChars {
		source = source[:maxSourceChars]
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Create a multiple-choice quiz with exactly %d questions at %s difficulty.\n", params.QuestionCount, params.Difficulty)
	fmt.Fprintf(&buf, "Topic: %s\n", params.TopicPrompt)
	if source != "" {
		fmt.Fprintf(&buf, "Base every question on this source material:\n---\n%s\n---\n", source)
	}
	buf.WriteString(`Respond with JSON only, matching this schema exactly:
{"title": string,
 "questions": [{"prompt": string,
   "options": [{"id": "a"|"b"|"c"|"d", "text": string}],
   "correct_option_id": string,
   "time_limit_seconds": integer between 5 and 90}]}
Each question has 2 to 6 options and exactly one correct option id.`)
	return buf.String()
}
