package reddit

import (
	"strings"
	"time"

	"github.com/Ayoub-k/DS-RedditEndToEnd/pkg/etlerrors"
)

// TimeWindow is the ranking window of a top listing.
type TimeWindow string

// Supported windows.
const (
	WindowHour  TimeWindow = "hour"
	WindowDay   TimeWindow = "day"
	WindowWeek  TimeWindow = "week"
	WindowMonth TimeWindow = "month"
	WindowYear  TimeWindow = "year"
	WindowAll   TimeWindow = "all"
)

// QueryFilter parameterizes one FetchPosts call. A zero Limit fetches the
// whole listing.
type QueryFilter struct {
	Subreddit  string
	Limit      int
	TimeFilter TimeWindow
}

// Validate checks the filter before any request is made.
func (q QueryFilter) Validate() error {
	if strings.TrimSpace(q.Subreddit) == "" {
		return etlerrors.New(etlerrors.ErrorTypeValidation, "subreddit is required")
	}
	if q.Limit < 0 {
		return etlerrors.Newf(etlerrors.ErrorTypeValidation, "limit must not be negative, got %d", q.Limit)
	}
	_, err := ParseWindow(string(q.TimeFilter))
	return err
}

// ParseWindow parses a window keyword case-insensitively.
func ParseWindow(s string) (TimeWindow, error) {
	w := TimeWindow(strings.ToLower(strings.TrimSpace(s)))
	switch w {
	case WindowHour, WindowDay, WindowWeek, WindowMonth, WindowYear, WindowAll:
		return w, nil
	}
	return "", etlerrors.Newf(etlerrors.ErrorTypeValidation,
		"unsupported time window %q: use hour, day, week, month, year or all", s)
}

// Interval is the half-open range [Start, End). A zero Interval is unbounded.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Bounded reports whether the interval restricts anything.
func (i Interval) Bounded() bool {
	return !i.Start.IsZero() || !i.End.IsZero()
}

// Contains reports whether t lies in the interval.
func (i Interval) Contains(t time.Time) bool {
	if !i.Bounded() {
		return true
	}
	return !t.Before(i.Start) && t.Before(i.End)
}

// IntervalFor computes the calendar interval of w that contains now, in
// now's location. Weeks start on Monday. WindowAll is unbounded.
func IntervalFor(w TimeWindow, now time.Time) (Interval, error) {
	y, m, d := now.Date()
	loc := now.Location()
	var start, end time.Time

	switch w {
	case WindowHour:
		start = time.Date(y, m, d, now.Hour(), 0, 0, 0, loc)
		end = start.Add(time.Hour)
	case WindowDay:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 1)
	case WindowWeek:
		offset := (int(now.Weekday()) + 6) % 7
		start = time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 7)
	case WindowMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0)
	case WindowYear:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		end = start.AddDate(1, 0, 0)
	case WindowAll:
		return Interval{}, nil
	default:
		_, err := ParseWindow(string(w))
		return Interval{}, err
	}
	return Interval{Start: start, End: end}, nil
}

// epochTime converts fractional epoch seconds.
func epochTime(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}
