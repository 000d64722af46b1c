package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/punchclock/internal/store"
)

var csvHeader = []string{"ID", "Start", "End", "Duration (s)", "Duration", "Latitude", "Longitude", "Images"}

// ToCSV writes periods to a new file at path. Open periods are measured up to now.
func ToCSV(periods []store.TrackedPeriod, images map[int64]int, now time.Time, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, periods, images, now); err != nil {
		return err
	}
	return f.Close()
}

func WriteCSV(out io.Writer, periods []store.TrackedPeriod, images map[int64]int, now time.Time) error {
	w := csv.NewWriter(out)

	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, p := range periods {
		endStr := ""
		if p.End != nil {
			endStr = p.End.Local().Format(time.RFC3339)
		}
		secs := int64(p.Total(now) / time.Second)

		row := []string{
			strconv.FormatInt(p.ID, 10),
			p.Start.Local().Format(time.RFC3339),
			endStr,
			strconv.FormatInt(secs, 10),
			formatDuration(secs),
			strconv.FormatFloat(p.Location.Latitude, 'f', -1, 64),
			strconv.FormatFloat(p.Location.Longitude, 'f', -1, 64),
			strconv.Itoa(images[p.ID]),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
