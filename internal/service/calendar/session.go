package calendar

import (
	"time"
	_ "time/tzdata"

	"github.com/scmhub/calendar"
)

const (
	defaultMIC  = "xnys"
	openSecond  = 9*3600 + 30*60
	closeSecond = 16 * 3600
)

// Session answers "is the regular session on at t" for one exchange.
// Both ends of the 09:30-16:00 window are inclusive.
type Session struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewSession loads the exchange calendar for mic. Unknown MICs fall back to XNYS,
// and a missing calendar falls back to plain weekdays in New York.
func NewSession(mic string) *Session {
	if mic == "" {
		mic = defaultMIC
	}
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar(defaultMIC)
	}
	if cal == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		return &Session{loc: loc}
	}
	loc := cal.Loc
	if loc == nil {
		loc, _ = time.LoadLocation("America/New_York")
	}
	return &Session{cal: cal, loc: loc}
}

func (s *Session) Location() *time.Location { return s.loc }

// IsBusinessDay reports whether the exchange trades on t's local date.
func (s *Session) IsBusinessDay(t time.Time) bool {
	t = t.In(s.loc)
	if s.cal == nil {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return s.cal.IsBusinessDay(t)
}

// IsTrading reports whether t falls inside the regular session.
func (s *Session) IsTrading(t time.Time) bool {
	local := t.In(s.loc)
	if !s.IsBusinessDay(local) {
		return false
	}
	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()
	if sec == closeSecond && local.Nanosecond() > 0 {
		return false
	}
	return sec >= openSecond && sec <= closeSecond
}
