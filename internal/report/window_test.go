package report

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/throughput/internal/counter"
)

func TestRate(t *testing.T) {
	tests := []struct {
		name    string
		count   uint64
		seconds uint64
		want    uint64
	}{
		{name: "floor division", count: 11, seconds: 5, want: 2},
		{name: "exact", count: 10, seconds: 5, want: 2},
		{name: "below one per second", count: 4, seconds: 5, want: 0},
		{name: "zero count", count: 0, seconds: 5, want: 0},
		{name: "one second window", count: 7, seconds: 1, want: 7},
		{name: "zero seconds", count: 7, seconds: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rate(tt.count, tt.seconds))
		})
	}
}

func TestNewWindow(t *testing.T) {
	end := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	snap := counter.Snapshot{
		"test": {Incoming: 11, Outgoing: 5},
		"api":  {Incoming: 3},
	}

	w := NewWindow(DefaultPrefix, snap, 5, end)

	assert.Equal(t, end, w.End)
	assert.Equal(t, uint64(5), w.Seconds)
	require.Len(t, w.Rates, 2)

	assert.Equal(t, TagRate{
		Tag: "api", IncomingCount: 3, OutgoingCount: 0, Incoming: 0, Outgoing: 0,
	}, w.Rates[0])
	assert.Equal(t, TagRate{
		Tag: "test", IncomingCount: 11, OutgoingCount: 5, Incoming: 2, Outgoing: 1,
	}, w.Rates[1])

	assert.Equal(t,
		"ThroughputProfiler: [api,incoming=0/s,outgoing=0/s] [test,incoming=2/s,outgoing=1/s]",
		w.Line,
	)
}

func TestNewWindow_Empty(t *testing.T) {
	w := NewWindow("prefix:", counter.Snapshot{}, 5, time.Now())

	assert.Empty(t, w.Rates)
	assert.Equal(t, "prefix:", w.Line)
}

func TestFormatLine_SegmentShape(t *testing.T) {
	rates := []TagRate{
		{Tag: "a", Incoming: 1, Outgoing: 0},
		{Tag: "b c", Incoming: 200, Outgoing: 3},
	}

	line := FormatLine("p:", rates)

	segment := regexp.MustCompile(`^ \[[^,\]]+,incoming=\d+/s,outgoing=\d+/s\]`)
	rest := line[len("p:"):]

	for rest != "" {
		loc := segment.FindStringIndex(rest)
		require.NotNil(t, loc, "unexpected segment in %q", rest)
		rest = rest[loc[1]:]
	}

	assert.Equal(t, "p: [a,incoming=1/s,outgoing=0/s] [b c,incoming=200/s,outgoing=3/s]", line)
}
