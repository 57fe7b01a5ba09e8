package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/batchwatch/batch"
)

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatElapsed(0))
	assert.Equal(t, "01:02:03", FormatElapsed(time.Hour+2*time.Minute+3*time.Second+900*time.Millisecond))
	assert.Equal(t, "27:00:05", FormatElapsed(27*time.Hour+5*time.Second))
	assert.Equal(t, "00:00:30", FormatElapsed(-30*time.Second))
}

func TestElapsedIsAbsolute(t *testing.T) {
	start := time.Date(2023, 12, 13, 15, 0, 0, 0, time.UTC)
	skewed := start.Add(-90 * time.Second)
	assert.Equal(t, 90*time.Second, Elapsed(start, &skewed, time.Time{}))

	now := start.Add(10 * time.Minute)
	assert.Equal(t, 10*time.Minute, Elapsed(start, nil, now))
}

func TestElapsedRoundTrip(t *testing.T) {
	start := time.Date(2023, 12, 13, 14, 33, 48, 640_000_000, time.UTC)
	ends := []time.Time{
		start.Add(3 * time.Second),
		start.Add(47*time.Minute + 12*time.Second + 300*time.Millisecond),
		start.Add(26*time.Hour + 59*time.Minute + 59*time.Second),
		start.Add(-5 * time.Minute),
	}

	for _, end := range ends {
		end := end
		d := Elapsed(start, &end, time.Time{})
		parsed, err := ParseElapsed(FormatElapsed(d))
		require.NoError(t, err)
		assert.Equal(t, d.Truncate(time.Second), parsed)
	}
}

func TestParseElapsedRejects(t *testing.T) {
	for _, s := range []string{"", "1:2", "aa:00:00", "00:60:00", "00:00:75", "-1:00:00"} {
		_, err := ParseElapsed(s)
		assert.Error(t, err, s)
	}
}

func TestActiveTask(t *testing.T) {
	end := time.Date(2023, 12, 14, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		tasks  []batch.TaskHistory
		want   int64
		wantOK bool
	}{
		{"none", nil, 0, false},
		{"first open wins", []batch.TaskHistory{{TaskID: 1, End: &end}, {TaskID: 3}, {TaskID: 2}}, 3, true},
		{"highest finished", []batch.TaskHistory{{TaskID: 4, End: &end}, {TaskID: 9, End: &end}, {TaskID: 6, End: &end}}, 9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ActiveTask(tt.tasks)
			assert.Equal(t, tt.want, id)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
