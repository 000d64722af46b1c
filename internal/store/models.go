package store

import "time"

type User struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Location is a geographic coordinate pair in decimal degrees.
type Location struct {
	Latitude  float64
	Longitude float64
}

// TrackedPeriod is one contiguous work session. A nil End means the period is open.
type TrackedPeriod struct {
	ID       int64 // 0 until first persisted
	UserID   int64
	Start    time.Time
	End      *time.Time
	Location Location
}

func (p TrackedPeriod) IsOpen() bool {
	return p.End == nil
}

// Total is End-Start for a closed period and now-Start for an open one.
func (p TrackedPeriod) Total(now time.Time) time.Duration {
	end := now
	if p.End != nil {
		end = *p.End
	}
	d := end.Sub(p.Start)
	if d < 0 {
		return 0
	}
	return d
}

// Clone returns a deep copy so callers cannot mutate shared state through End.
func (p *TrackedPeriod) Clone() *TrackedPeriod {
	if p == nil {
		return nil
	}
	c := *p
	if p.End != nil {
		end := *p.End
		c.End = &end
	}
	return &c
}

type Image struct {
	ID        int64
	PeriodID  int64
	Content   []byte
	CreatedAt time.Time
}

type Setting struct {
	Key   string
	Value string
}

// DailyTotal aggregates closed periods per UTC day.
type DailyTotal struct {
	Date         string
	TotalSeconds int64
	PeriodCount  int
}
