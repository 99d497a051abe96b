package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	bferrors "github.com/vnykmshr/batchflow/pkg/common/errors"
)

// cronParser accepts 5 or 6 fields (seconds optional) and descriptors.
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronDescription provides human-readable information about a cron expression.
type CronDescription struct {
	Expression  string
	Description string
	NextRuns    []time.Time
	TimeZone    string
}

// ParseCron parses a cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, bferrors.NewValidationError("scheduler", "CronExpr", expr, "cannot be empty").
			WithHint(`use a cron expression such as "*/5 * * * * *" or "@every 5s"`)
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, bferrors.NewValidationError("scheduler", "CronExpr", expr, err.Error())
	}
	return schedule, nil
}

// ValidateCronExpression validates a cron expression without scheduling it.
func ValidateCronExpression(expr string) error {
	_, err := ParseCron(expr)
	return err
}

// DescribeCron returns the next n run times of expr in loc after from.
func DescribeCron(expr string, loc *time.Location, from time.Time, n int) (CronDescription, error) {
	schedule, err := ParseCron(expr)
	if err != nil {
		return CronDescription{}, err
	}
	if loc == nil {
		loc = time.Local
	}

	runs := make([]time.Time, 0, n)
	current := from.In(loc)
	for i := 0; i < n; i++ {
		current = schedule.Next(current)
		if current.IsZero() {
			break
		}
		runs = append(runs, current)
	}

	return CronDescription{
		Expression:  expr,
		Description: describe(expr),
		NextRuns:    runs,
		TimeZone:    loc.String(),
	}, nil
}

func describe(expr string) string {
	switch expr {
	case "@yearly", "@annually":
		return "Once a year (January 1st at midnight)"
	case "@monthly":
		return "Once a month (1st day at midnight)"
	case "@weekly":
		return "Once a week (Sunday at midnight)"
	case "@daily", "@midnight":
		return "Once a day (at midnight)"
	case "@hourly":
		return "Once an hour (at minute 0)"
	}
	return fmt.Sprintf("Custom schedule: %s", expr)
}

// cadence computes nominal cycle start times.
type cadence interface {
	// first returns the nominal start of the first cycle.
	first(now time.Time) time.Time

	// next returns the nominal start of the cycle after one that was due
	// at prev, started at started and finished at finished, along with the
	// number of nominal ticks skipped because they had already passed.
	next(prev, started, finished time.Time) (time.Time, int)
}

type fixedRate struct {
	period time.Duration
}

func (c fixedRate) first(now time.Time) time.Time {
	return now
}

func (c fixedRate) next(prev, started, finished time.Time) (time.Time, int) {
	n := prev.Add(c.period)
	if n.After(finished) {
		return n, 0
	}
	// Run once for the latest tick that has passed and skip the rest.
	missed := int(finished.Sub(n) / c.period)
	return n.Add(time.Duration(missed) * c.period), missed
}

type fixedDelay struct {
	period time.Duration
}

func (c fixedDelay) first(now time.Time) time.Time {
	return now
}

func (c fixedDelay) next(prev, started, finished time.Time) (time.Time, int) {
	return finished.Add(c.period), 0
}

type cronCadence struct {
	schedule cron.Schedule
	location *time.Location
}

func (c cronCadence) first(now time.Time) time.Time {
	return c.schedule.Next(now.In(c.location))
}

func (c cronCadence) next(prev, started, finished time.Time) (time.Time, int) {
	n := c.schedule.Next(prev.In(c.location))
	skipped := 0
	for !n.IsZero() && !n.After(finished) {
		following := c.schedule.Next(n)
		if following.IsZero() || following.After(finished) {
			break
		}
		n = following
		skipped++
	}
	return n, skipped
}

func newCadence(config Config) (cadence, error) {
	switch config.Mode {
	case FixedDelay:
		return fixedDelay{period: config.Period}, nil
	case Cron:
		schedule, err := ParseCron(config.CronExpr)
		if err != nil {
			return nil, err
		}
		loc := config.Location
		if loc == nil {
			loc = time.Local
		}
		return cronCadence{schedule: schedule, location: loc}, nil
	default:
		return fixedRate{period: config.Period}, nil
	}
}
