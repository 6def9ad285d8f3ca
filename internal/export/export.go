// Package export renders final session results as downloadable documents.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"livequiz/internal/domain"
)

var header = []string{"rank", "player", "score", "correct_answers", "answers_submitted"}

// CSV renders leaderboard entries as a header row plus one row per player,
// in the order given (already ranked by the leaderboard builder).
func CSV(entries []domain.LeaderboardEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		row := []string{
			strconv.Itoa(entry.Rank),
			entry.PlayerName,
			strconv.Itoa(entry.Score),
			strconv.Itoa(entry.CorrectAnswers),
			strconv.Itoa(entry.AnswersSubmitted),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PDF renders a titled A4 results sheet, one line per player. gofpdf adds
// pages as the table runs past the bottom margin.
func PDF(title string, entries []domain.LeaderboardEntry) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 12, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(15, 8, "#", "B", 0, "L", false, 0, "")
	pdf.CellFormat(85, 8, "Player", "B", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, "Score", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Correct", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Answered", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, entry := range entries {
		pdf.CellFormat(15, 8, strconv.Itoa(entry.Rank), "", 0, "L", false, 0, "")
		pdf.CellFormat(85, 8, entry.PlayerName, "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, strconv.Itoa(entry.Score), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, strconv.Itoa(entry.CorrectAnswers), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, strconv.Itoa(entry.AnswersSubmitted), "", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render results pdf: %w", err)
	}
	return buf.Bytes(), nil
}
