// Package ingest parses exported social-media CSV dumps into messages.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/sentinelle/backend/internal/models"
	"github.com/sentinelle/backend/pkg/logger"
)

// Header aliases seen across export tools, French and English.
var columnAliases = map[string][]string{
	"id":      {"id", "tweet_id", "message_id"},
	"author":  {"author", "auteur", "user", "screen_name", "username"},
	"text":    {"text", "texte", "message", "full_text", "contenu"},
	"date":    {"date", "created_at", "posted_at", "timestamp"},
	"likes":   {"likes", "favorite_count", "favs"},
	"reposts": {"reposts", "retweets", "retweet_count", "shares"},
	"replies": {"replies", "reply_count", "reponses"},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseMessages reads a CSV export and returns the cleaned messages. Rows
// with empty text after cleaning are skipped, not errors; a missing text
// column is an error. Rows without an identifier get a positional fallback id.
func ParseMessages(r io.Reader) ([]models.Message, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := mapColumns(header)
	if _, ok := columns["text"]; !ok {
		return nil, fmt.Errorf("CSV has no recognizable text column (header: %s)", strings.Join(header, ","))
	}

	var (
		messages []models.Message
		skipped  int
		rowNum   int
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", rowNum+2, err)
		}
		rowNum++

		text := CleanText(field(record, columns, "text"))
		if text == "" {
			skipped++
			continue
		}

		id := strings.TrimSpace(field(record, columns, "id"))
		if id == "" {
			id = fmt.Sprintf("row-%d", rowNum)
		}

		messages = append(messages, models.Message{
			ID:       id,
			Author:   strings.TrimSpace(field(record, columns, "author")),
			Text:     text,
			PostedAt: parseDate(field(record, columns, "date")),
			Likes:    parseInt(field(record, columns, "likes")),
			Reposts:  parseInt(field(record, columns, "reposts")),
			Replies:  parseInt(field(record, columns, "replies")),
		})
	}

	logger.Info("CSV parsed",
		zap.Int("messages", len(messages)),
		zap.Int("skipped_empty", skipped),
	)

	return messages, nil
}

// CleanText strips control characters and collapses whitespace runs. Casing
// and punctuation are preserved; normalization for fingerprinting happens in
// the cache layer.
func CleanText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func mapColumns(header []string) map[string]int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
	}

	columns := make(map[string]int)
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			for i, h := range normalized {
				if h == alias {
					columns[field] = i
					break
				}
			}
			if _, ok := columns[field]; ok {
				break
			}
		}
	}
	return columns
}

func field(record []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
