package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getURL(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateAndListQuizzes(t *testing.T) {
	ts := newTestServer(t)

	quiz := map[string]any{
		"title": "Capitals of Europe",
		"questions": []map[string]any{
			{
				"prompt":             "What is the capital of France?",
				"options":            []map[string]string{{"id": "a", "text": "Paris"}, {"id": "b", "text": "Lyon"}},
				"correct_option_id":  "a",
				"time_limit_seconds": 15,
			},
		},
	}
	resp := postJSON(t, ts.server.URL+"/api/quizzes", quiz)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Fatal("expected generated quiz id")
	}

	resp = getURL(t, ts.server.URL+"/api/quizzes")
	var summaries []struct {
		ID            string `json:"id"`
		QuestionCount int    `json:"question_count"`
	}
	decodeBody(t, resp, &summaries)
	// The seeded sample quiz plus the one just created.
	if len(summaries) != 2 {
		t.Fatalf("expected two quizzes, got %d", len(summaries))
	}
}

func TestCreateQuizValidationFails(t *testing.T) {
	ts := newTestServer(t)

	// One option only, and a correct id pointing nowhere.
	quiz := map[string]any{
		"title": "Broken quiz",
		"questions": []map[string]any{
			{
				"prompt":             "Only one way out?",
				"options":            []map[string]string{{"id": "a", "text": "yes"}},
				"correct_option_id":  "z",
				"time_limit_seconds": 15,
			},
		},
	}
	resp := postJSON(t, ts.server.URL+"/api/quizzes", quiz)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateSessionAndReadViews(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.server.URL+"/api/sessions", map[string]string{
		"quiz_id": "quiz-1", "host_name": "Quizmaster",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var session struct {
		Code   string `json:"code"`
		Status string `json:"status"`
	}
	decodeBody(t, resp, &session)
	if len(session.Code) != 6 || session.Status != "lobby" {
		t.Fatalf("unexpected session: %+v", session)
	}

	resp = getURL(t, ts.server.URL+"/api/sessions/"+session.Code)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var view struct {
		Session struct {
			CurrentQuestionIndex int `json:"current_question_index"`
		} `json:"session"`
		Players []any `json:"players"`
	}
	decodeBody(t, resp, &view)
	if view.Session.CurrentQuestionIndex != -1 || len(view.Players) != 0 {
		t.Fatalf("unexpected view: %+v", view)
	}

	resp = getURL(t, ts.server.URL+"/api/sessions/"+session.Code+"/leaderboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard should work in any state, got %d", resp.StatusCode)
	}
}

func TestCreateSessionRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.server.URL+"/api/sessions", map[string]string{
		"quiz_id": "quiz-1", "host_name": "Q",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short host name: expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.server.URL+"/api/sessions", map[string]string{
		"quiz_id": "no-such-quiz", "host_name": "Quizmaster",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown quiz: expected 404, got %d", resp.StatusCode)
	}
}

func TestJoinQREndpoint(t *testing.T) {
	ts := newTestServer(t)
	session := ts.createSession(t)

	resp := getURL(t, fmt.Sprintf("%s/api/sessions/%s/qr", ts.server.URL, session.Code))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Code      string `json:"code"`
		JoinURL   string `json:"join_url"`
		QRDataURL string `json:"qr_data_url"`
	}
	decodeBody(t, resp, &body)
	if body.JoinURL != "http://quiz.test/join?code="+session.Code {
		t.Fatalf("unexpected join url: %s", body.JoinURL)
	}
	if !strings.HasPrefix(body.QRDataURL, "data:image/png;base64,") {
		t.Fatalf("expected png data url, got %.40s", body.QRDataURL)
	}
}

func TestExportEndpoint(t *testing.T) {
	ts := newTestServer(t)
	session := ts.createSession(t)

	resp := getURL(t, fmt.Sprintf("%s/api/sessions/%s/export/csv", ts.server.URL, session.Code))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("csv export: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, session.Code) {
		t.Fatalf("unexpected disposition: %s", cd)
	}

	resp = getURL(t, fmt.Sprintf("%s/api/sessions/%s/export/pdf", ts.server.URL, session.Code))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pdf export: expected 200, got %d", resp.StatusCode)
	}

	resp = getURL(t, fmt.Sprintf("%s/api/sessions/%s/export/xlsx", ts.server.URL, session.Code))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown format: expected 400, got %d", resp.StatusCode)
	}
}

func TestGenerateWithoutGeneratorConfigured(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.server.URL+"/api/quizzes/generate", map[string]any{
		"topic_prompt": "The solar system", "question_count": 5, "difficulty": "easy",
	})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a generator, got %d", resp.StatusCode)
	}
}
