package transcript

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"splicer/internal/fileutil"
	"splicer/internal/services"
)

// FormatSRT renders entries as SubRip.
func FormatSRT(segs []Segment) string {
	var b strings.Builder
	writeCues(&b, segs, ',')
	return b.String()
}

// FormatVTT renders entries as WebVTT.
func FormatVTT(segs []Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	writeCues(&b, segs, '.')
	return b.String()
}

func writeCues(b *strings.Builder, segs []Segment, sep byte) {
	for i, seg := range segs {
		fmt.Fprintf(b, "%d\n%s --> %s\n%s\n\n",
			i+1, timestamp(seg.Start, sep), timestamp(seg.End, sep), strings.TrimSpace(seg.Text))
	}
}

func timestamp(seconds float64, sep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms%1000)
}

var cueTiming = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d+):(\d{2}):(\d{2})[,.](\d{3})`)

// ParseSRT reads SubRip (or WebVTT-style) cues.
func ParseSRT(r io.Reader) ([]Segment, error) {
	scanner := bufio.NewScanner(r)
	var (
		out     []Segment
		current *Segment
		lines   []string
	)
	flush := func() {
		if current != nil {
			current.Text = strings.Join(lines, "\n")
			out = append(out, *current)
		}
		current = nil
		lines = nil
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimPrefix(line, "\ufeff")
		if m := cueTiming.FindStringSubmatch(line); m != nil {
			flush()
			current = &Segment{Start: parseClock(m[1:5]), End: parseClock(m[5:9])}
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current != nil {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "transcript", "parse srt", "", err)
	}
	flush()
	return out, nil
}

func parseClock(parts []string) float64 {
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	s, _ := strconv.Atoi(parts[2])
	ms, _ := strconv.Atoi(parts[3])
	return float64(h*3600+m*60+s) + float64(ms)/1000
}

// WriteSRTFile atomically writes entries as SubRip to path.
func WriteSRTFile(ctx context.Context, path string, segs []Segment) error {
	if _, err := fileutil.WriteAtomic(ctx, path, bytes.NewBufferString(FormatSRT(segs))); err != nil {
		return services.Wrap(services.ErrProcessing, "transcript", "write srt", path, err)
	}
	return nil
}
