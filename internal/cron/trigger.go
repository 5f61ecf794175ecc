package cronrunner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"github.com/ahricool/raise/internal/errors"
)

var clockPattern = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Trigger fires once a day at Hour:Minute, optionally only on Weekdays
// (a cron day-of-week field such as "mon-fri"; empty means every day).
type Trigger struct {
	Hour     int
	Minute   int
	Weekdays string
}

// ParseClock accepts "H:MM" or "HH:MM".
func ParseClock(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	if !clockPattern.MatchString(value) {
		return 0, 0, errors.Wrapf(errors.ErrInvalidScheduleSpec, "time %q must look like HH:MM", value)
	}
	parts := strings.SplitN(value, ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])
	if hour > 23 || minute > 59 {
		return 0, 0, errors.Wrapf(errors.ErrInvalidScheduleSpec, "time %q out of range", value)
	}
	return hour, minute, nil
}

func NewTrigger(hour, minute int, weekdays string) (Trigger, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Trigger{}, errors.Wrapf(errors.ErrInvalidScheduleSpec, "hour=%d minute=%d out of range", hour, minute)
	}
	t := Trigger{Hour: hour, Minute: minute, Weekdays: strings.ToLower(strings.TrimSpace(weekdays))}
	if _, err := t.schedule(time.UTC); err != nil {
		return Trigger{}, err
	}
	return t, nil
}

// ParseTrigger combines ParseClock with a weekday field.
func ParseTrigger(clock, weekdays string) (Trigger, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return Trigger{}, err
	}
	return NewTrigger(hour, minute, weekdays)
}

// Clock renders the trigger time as zero-padded HH:MM.
func (t Trigger) Clock() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t Trigger) String() string {
	if t.Weekdays == "" {
		return t.Clock()
	}
	return t.Clock() + " " + t.Weekdays
}

func (t Trigger) spec() string {
	dow := t.Weekdays
	if dow == "" {
		dow = "*"
	}
	return fmt.Sprintf("0 %d %d * * %s", t.Minute, t.Hour, dow)
}

func (t Trigger) schedule(loc *time.Location) (cron.Schedule, error) {
	if loc == nil {
		loc = time.Local
	}
	sched, err := parser.Parse("CRON_TZ=" + loc.String() + " " + t.spec())
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidScheduleSpec, "weekdays %q: %v", t.Weekdays, err)
	}
	return sched, nil
}
