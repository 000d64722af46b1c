package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadopc/punchclock/internal/store"
)

type jsonExport struct {
	ExportedAt string       `json:"exported_at"`
	Count      int          `json:"count"`
	Periods    []jsonPeriod `json:"periods"`
}

type jsonPeriod struct {
	ID          int64   `json:"id"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time,omitempty"`
	Open        bool    `json:"open"`
	DurationSec int64   `json:"duration_seconds"`
	Duration    string  `json:"duration"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Images      int     `json:"images"`
}

// ToJSON writes periods to path as an indented document.
func ToJSON(periods []store.TrackedPeriod, images map[int64]int, now time.Time, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	if err := WriteJSON(f, periods, images, now); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}

func WriteJSON(w io.Writer, periods []store.TrackedPeriod, images map[int64]int, now time.Time) error {
	export := jsonExport{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Count:      len(periods),
	}

	for _, p := range periods {
		endStr := ""
		if p.End != nil {
			endStr = p.End.Local().Format(time.RFC3339)
		}
		secs := int64(p.Total(now) / time.Second)

		export.Periods = append(export.Periods, jsonPeriod{
			ID:          p.ID,
			StartTime:   p.Start.Local().Format(time.RFC3339),
			EndTime:     endStr,
			Open:        p.IsOpen(),
			DurationSec: secs,
			Duration:    formatDuration(secs),
			Latitude:    p.Location.Latitude,
			Longitude:   p.Location.Longitude,
			Images:      images[p.ID],
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}
