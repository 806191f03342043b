package capability

import (
	"context"
	"fmt"
	"time"
)

// ClockName is the registered name of the datetime capability.
const ClockName = "current_datetime"

// NewClock builds a capability that reports the current server date and
// time. It takes no parameters.
func NewClock(opts ...Option) *Base {
	return NewClockAt(time.Now, opts...)
}

// NewClockAt builds a clock capability over an injectable time source.
func NewClockAt(now func() time.Time, opts ...Option) *Base {
	return NewFunc(ClockName, "Returns the current date, time, and weekday",
		func(_ context.Context, _ map[string]any) (any, error) {
			t := now()
			return map[string]any{
				"date":         t.Format("2006-01-02"),
				"time":         t.Format("15:04"),
				"weekday":      t.Weekday().String(),
				"iso":          t.Format(time.RFC3339),
				"natural_text": fmt.Sprintf("Today is %s, %s. The time is %s.", t.Weekday(), t.Format("January 2, 2006"), t.Format("15:04")),
			}, nil
		}, opts...)
}
