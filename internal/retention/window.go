package retention

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var units = map[string]time.Duration{
	"second":  time.Second,
	"seconds": time.Second,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"month":   30 * 24 * time.Hour,
	"months":  30 * 24 * time.Hour,
	"year":    365 * 24 * time.Hour,
	"years":   365 * 24 * time.Hour,
}

// ParseWindow reads a retention window. Both the SQLite modifier form used by
// existing deployments ("-1 hour", "-30 minutes", "-2 days") and Go durations
// ("90m", "-1h") are accepted. The sign is ignored. An empty expression
// disables flushing and yields 0.
func ParseWindow(expr string) (time.Duration, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return 0, nil
	}
	var (
		d   time.Duration
		err error
	)
	if fields := strings.Fields(s); len(fields) == 2 {
		d, err = parseModifier(fields[0], fields[1])
	} else {
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid retention window %q: %w", expr, err)
	}
	if d < 0 {
		d = -d
	}
	if d == 0 {
		return 0, fmt.Errorf("invalid retention window %q: must be non-zero", expr)
	}
	return d, nil
}

func parseModifier(amount, unit string) (time.Duration, error) {
	n, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", amount)
	}
	u, ok := units[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || math.Abs(n)*float64(u) >= math.MaxInt64 {
		return 0, fmt.Errorf("amount %q is out of range", amount)
	}
	return time.Duration(n * float64(u)), nil
}
