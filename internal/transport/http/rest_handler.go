package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"

	"livequiz/internal/app"
	"livequiz/internal/domain"
	"livequiz/internal/export"
)

const maxUploadBytes = 10 << 20

var validate = validator.New()

// RESTHandler serves the request/response API: the quiz catalog, session
// creation and the read-only session views. Everything live goes over the
// websocket instead.
type RESTHandler struct {
	quizzes     *app.QuizService
	coordinator *app.Coordinator
	publicURL   string
}

func NewRESTHandler(quizzes *app.QuizService, coordinator *app.Coordinator, publicURL string) *RESTHandler {
	return &RESTHandler{
		quizzes:     quizzes,
		coordinator: coordinator,
		publicURL:   strings.TrimRight(publicURL, "/"),
	}
}

// Router assembles the full route table, websocket endpoint included.
func (h *RESTHandler) Router(ws *WSHandler) http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/healthz", h.healthz)
	router.HandlerFunc(http.MethodPost, "/api/quizzes/generate", h.generateQuiz)
	router.HandlerFunc(http.MethodPost, "/api/quizzes/generate-from-file", h.generateQuizFromFile)
	router.HandlerFunc(http.MethodPost, "/api/quizzes", h.createQuiz)
	router.HandlerFunc(http.MethodGet, "/api/quizzes", h.listQuizzes)
	router.HandlerFunc(http.MethodPost, "/api/sessions", h.createSession)
	router.GET("/api/sessions/:code", h.getSession)
	router.GET("/api/sessions/:code/leaderboard", h.getLeaderboard)
	router.GET("/api/sessions/:code/qr", h.getJoinQR)
	router.GET("/api/sessions/:code/export/:format", h.exportResults)
	router.HandlerFunc(http.MethodGet, "/ws", ws.ServeWS)
	return router
}

func (h *RESTHandler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

type generateQuizRequest struct {
	TopicPrompt   string `json:"topic_prompt"`
	QuestionCount int    `json:"question_count"`
	Difficulty    string `json:"difficulty"`
}

func (h *RESTHandler) generateQuiz(w http.ResponseWriter, r *http.Request) {
	var req generateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput))
		return
	}
	quiz, err := h.quizzes.Generate(r.Context(), app.GenerateParams{
		TopicPrompt:   req.TopicPrompt,
		QuestionCount: req.QuestionCount,
		Difficulty:    req.Difficulty,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *RESTHandler) generateQuizFromFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: malformed multipart request", domain.ErrInvalidInput))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: file field is required", domain.ErrInvalidInput))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, err)
		return
	}

	count := 0
	fmt.Sscanf(r.FormValue("question_count"), "%d", &count)
	quiz, source, err := h.quizzes.GenerateFromUpload(r.Context(), app.UploadParams{
		Filename:      header.Filename,
		Data:          data,
		TopicPrompt:   r.FormValue("topic_prompt"),
		QuestionCount: count,
		Difficulty:    r.FormValue("difficulty"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	preview := source
	if len(preview) > 500 {
		preview = preview[:500]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"quiz":                quiz,
		"source_text_preview": preview,
	})
}

func (h *RESTHandler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var quiz domain.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput))
		return
	}
	stored, err := h.quizzes.CreateQuiz(r.Context(), quiz)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *RESTHandler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.quizzes.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

type createSessionRequest struct {
	QuizID   string `json:"quiz_id" validate:"required"`
	HostName string `json:"host_name" validate:"required,min=2,max=40"`
}

func (h *RESTHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", domain.ErrInvalidInput))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	session, err := h.coordinator.CreateSession(r.Context(), req.QuizID, req.HostName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *RESTHandler) getSession(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	session, players, err := h.coordinator.SessionView(r.Context(), params.ByName("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"players": players,
	})
}

func (h *RESTHandler) getLeaderboard(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	entries, err := h.coordinator.Leaderboard(r.Context(), params.ByName("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (h *RESTHandler) getJoinQR(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	session, _, err := h.coordinator.SessionView(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	joinURL := fmt.Sprintf("%s/join?code=%s", h.publicURL, session.Code)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":        session.Code,
		"join_url":    joinURL,
		"qr_data_url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

func (h *RESTHandler) exportResults(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	code := params.ByName("code")
	entries, err := h.coordinator.Leaderboard(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	title := "Quiz results " + code
	switch params.ByName("format") {
	case "csv":
		data, err := export.CSV(entries)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="results-%s.csv"`, code))
		w.Write(data)
	case "pdf":
		data, err := export.PDF(title, entries)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="results-%s.pdf"`, code))
		w.Write(data)
	default:
		writeError(w, fmt.Errorf("%w: unsupported export format, use csv or pdf", domain.ErrInvalidInput))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"detail": publicDetail(err)})
}
