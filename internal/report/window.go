package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/throughput/internal/counter"
)

// TagRate is the per-second rate of a single tag over one window.
type TagRate struct {
	Tag string

	// IncomingCount and OutgoingCount are the raw window counts.
	IncomingCount uint64
	OutgoingCount uint64

	// Incoming and Outgoing are floor-divided events per second.
	Incoming uint64
	Outgoing uint64
}

// Window is the summary of one drained reporting window.
type Window struct {
	End     time.Time
	Seconds uint64
	Rates   []TagRate
	Line    string
}

// Rate floor-divides a window count by the window length in seconds.
func Rate(count, seconds uint64) uint64 {
	if seconds == 0 {
		return 0
	}

	return count / seconds
}

// NewWindow summarizes a drained snapshot. Rates are ordered by tag.
func NewWindow(
	prefix string,
	snap counter.Snapshot,
	seconds uint64,
	end time.Time,
) Window {
	rates := make([]TagRate, 0, snap.Len())

	for _, tag := range snap.Tags() {
		e := snap[tag]

		rates = append(rates, TagRate{
			Tag:           tag,
			IncomingCount: e.Incoming,
			OutgoingCount: e.Outgoing,
			Incoming:      Rate(e.Incoming, seconds),
			Outgoing:      Rate(e.Outgoing, seconds),
		})
	}

	return Window{
		End:     end,
		Seconds: seconds,
		Rates:   rates,
		Line:    FormatLine(prefix, rates),
	}
}

// FormatLine renders the report line:
//
//	<prefix> [<tag>,incoming=<N>/s,outgoing=<M>/s] [...]
func FormatLine(prefix string, rates []TagRate) string {
	var b strings.Builder

	b.Grow(len(prefix) + len(rates)*48)
	b.WriteString(prefix)

	for _, r := range rates {
		b.WriteString(" [")
		b.WriteString(r.Tag)
		b.WriteString(",incoming=")
		b.WriteString(strconv.FormatUint(r.Incoming, 10))
		b.WriteString("/s,outgoing=")
		b.WriteString(strconv.FormatUint(r.Outgoing, 10))
		b.WriteString("/s]")
	}

	return b.String()
}
