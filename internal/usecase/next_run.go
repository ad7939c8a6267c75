package usecase

import (
	"time"

	"meal-planner/internal/domain/model"
)

// Clock is the time source of the scheduler use cases.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// Calendar holds the civil timezone and wall-clock run hour used for scheduling.
type Calendar struct {
	Loc     *time.Location
	RunHour int
}

func NewCalendar(timezone string, runHour int) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	if runHour < 0 || runHour > 23 {
		runHour = 9
	}
	return &Calendar{Loc: loc, RunHour: runHour}, nil
}

// NextRun returns the UTC instant at which the job for the next shopping day
// becomes due: the first shopping day at RunHour strictly after now, moved
// back by leadHours of civil time so the local wall-clock hour is preserved
// across DST changes.
func (c *Calendar) NextRun(now time.Time, shoppingDay time.Weekday, leadHours int) time.Time {
	local := now.In(c.Loc)
	y, m, d := local.Date()

	ahead := (int(shoppingDay) - int(local.Weekday()) + 7) % 7
	shop := c.wallClock(y, m, d+ahead, c.RunHour, 0)
	if !shop.After(now) {
		ahead += 7
	}

	// time.Date normalises the negative hour into the previous civil days.
	due := time.Date(y, m, d+ahead, c.RunHour-leadHours, 0, 0, 0, time.UTC)
	return c.wallClock(due.Year(), due.Month(), due.Day(), due.Hour(), due.Minute())
}

// WeekStart returns the civil date of the first Monday strictly after now's date.
func (c *Calendar) WeekStart(now time.Time) string {
	local := now.In(c.Loc)
	ahead := (int(time.Monday) - int(local.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	y, m, d := local.Date()
	return time.Date(y, m, d+ahead, 0, 0, 0, 0, time.UTC).Format(model.DateLayout)
}

// wallClock resolves a civil date and time in c.Loc to a UTC instant. The
// candidate is re-formatted in the zone and shifted by the minute delta from
// the wanted wall clock; a second pass settles candidates that straddle a
// transition.
func (c *Calendar) wallClock(y int, m time.Month, d, hh, mm int) time.Time {
	want := time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
	candidate := time.Date(y, m, d, hh, mm, 0, 0, c.Loc)
	for i := 0; i < 2; i++ {
		lt := candidate.In(c.Loc)
		got := time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), 0, 0, time.UTC)
		delta := want.Sub(got)
		if delta == 0 {
			break
		}
		candidate = candidate.Add(delta)
	}
	return candidate.UTC()
}
