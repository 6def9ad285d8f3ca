package export

import (
	"bytes"
	"strings"
	"testing"

	"livequiz/internal/domain"
)

func sampleEntries() []domain.LeaderboardEntry {
	return []domain.LeaderboardEntry{
		{Rank: 1, PlayerName: "Alice", Score: 1900, CorrectAnswers: 2, AnswersSubmitted: 2},
		{Rank: 2, PlayerName: "Bob", Score: 600, CorrectAnswers: 1, AnswersSubmitted: 2},
	}
}

func TestCSVRendersHeaderAndRows(t *testing.T) {
	data, err := CSV(sampleEntries())
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus two rows, got %d lines: %q", len(lines), lines)
	}
	if lines[0] != "rank,player,score,correct_answers,answers_submitted" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "1,Alice,1900,2,2" {
		t.Fatalf("unexpected first row: %q", lines[1])
	}
}

func TestCSVWithNoEntriesKeepsHeader(t *testing.T) {
	data, err := CSV(nil)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if strings.TrimSpace(string(data)) != "rank,player,score,correct_answers,answers_submitted" {
		t.Fatalf("expected header only, got %q", string(data))
	}
}

func TestPDFProducesDocument(t *testing.T) {
	data, err := PDF("Quiz results 123456", sampleEntries())
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected pdf magic bytes, got %q", data[:8])
	}
}
