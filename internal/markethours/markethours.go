// Package markethours describes an exchange trading session so the
// indicator loop can idle while no new bars can arrive.
package markethours

import (
	"fmt"
	"time"
)

// IST is Indian Standard Time (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// Session is a daily trading window in Loc, Monday to Friday, minus
// holidays.
type Session struct {
	Loc   *time.Location
	Open  time.Duration // offset from local midnight
	Close time.Duration

	holidays map[string]bool // "2006-01-02"
}

// NSE returns the 09:15-15:30 IST session. With no dates the built-in
// holiday calendar is used; dates are "YYYY-MM-DD".
func NSE(holidays ...string) (*Session, error) {
	s := &Session{
		Loc:      IST,
		Open:     9*time.Hour + 15*time.Minute,
		Close:    15*time.Hour + 30*time.Minute,
		holidays: make(map[string]bool),
	}
	if len(holidays) == 0 {
		holidays = nseHolidays
	}
	for _, d := range holidays {
		t, err := time.ParseInLocation(dateLayout, d, IST)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", d, err)
		}
		s.holidays[t.Format(dateLayout)] = true
	}
	return s, nil
}

func (s *Session) midnight(t time.Time) time.Time {
	l := t.In(s.Loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, s.Loc)
}

// IsHoliday reports whether t's local date is a listed holiday.
func (s *Session) IsHoliday(t time.Time) bool {
	return s.holidays[t.In(s.Loc).Format(dateLayout)]
}

// IsTradingDay reports whether t falls on a weekday that is not a holiday.
func (s *Session) IsTradingDay(t time.Time) bool {
	wd := t.In(s.Loc).Weekday()
	return wd != time.Saturday && wd != time.Sunday && !s.IsHoliday(t)
}

// IsOpen reports whether t is inside the session, close excluded.
func (s *Session) IsOpen(t time.Time) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	off := t.Sub(s.midnight(t))
	return off >= s.Open && off < s.Close
}

// NextOpen returns the first session open strictly after t, or today's open
// if t is before it on a trading day.
func (s *Session) NextOpen(t time.Time) time.Time {
	day := s.midnight(t)
	if open := day.Add(s.Open); t.Before(open) && s.IsTradingDay(t) {
		return open
	}
	for i := 1; i <= 14; i++ {
		d := day.AddDate(0, 0, i)
		if s.IsTradingDay(d) {
			return d.Add(s.Open)
		}
	}
	return day.AddDate(0, 0, 1).Add(s.Open)
}

// Status is a one-line description for logs.
func (s *Session) Status(t time.Time) string {
	if s.IsOpen(t) {
		return "open, closes in " + fmtDur(s.midnight(t).Add(s.Close).Sub(t))
	}
	next := s.NextOpen(t)
	return fmt.Sprintf("closed, opens %s %s (in %s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
