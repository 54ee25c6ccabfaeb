package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/miro2468/MoodTracker-Bot/internal/config"
	"github.com/miro2468/MoodTracker-Bot/internal/model"
	"github.com/miro2468/MoodTracker-Bot/internal/repository"
)

// ExportService renders a user's full history as CSV.
type ExportService struct {
	entryRepo *repository.EntryRepository
}

func NewExportService(entryRepo *repository.EntryRepository) *ExportService {
	return &ExportService{entryRepo: entryRepo}
}

// CSV returns the user's entries, newest first, one row per entry with
// tags joined by comma.
func (s *ExportService) CSV(ctx context.Context, user *model.User) ([]byte, error) {
	entries, err := s.entryRepo.ListWithTags(ctx, user.ID, time.Time{}, time.Time{}, 0)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"date", "mood_score", "mood_name", "diary_text", "tags"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range entries {
		names := make([]string, 0, len(e.Tags))
		for _, tag := range e.Tags {
			names = append(names, tag.Name)
		}
		row := []string{
			e.Day().Format("2006-01-02"),
			strconv.Itoa(e.MoodScore),
			config.MoodNames[e.MoodScore],
			e.DiaryText,
			strings.Join(names, ", "),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
