package status

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/batchwatch/errors"
)

// Elapsed is the run time from start to end, or to now while the run is
// open. Clock skew between hosts can put end before start; the absolute
// value is returned.
func Elapsed(start time.Time, end *time.Time, now time.Time) time.Duration {
	stop := now
	if end != nil {
		stop = *end
	}
	d := stop.Sub(start)
	if d < 0 {
		d = -d
	}
	return d
}

// FormatElapsed renders d as HH:mm:ss, truncating to whole seconds. Hours
// are not wrapped at a day.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

// ParseElapsed reads the HH:mm:ss form written by FormatElapsed.
func ParseElapsed(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, errors.Newf("elapsed time %q is not HH:mm:ss", s)
	}

	var v [3]int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, errors.Newf("elapsed time %q has an invalid field %q", s, p)
		}
		v[i] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return 0, errors.Newf("elapsed time %q is out of range", s)
	}
	return time.Duration(v[0])*time.Hour + time.Duration(v[1])*time.Minute + time.Duration(v[2])*time.Second, nil
}
