package silence

import (
	"bufio"
	"io"
	"regexp"
	"strconv"

	"splicer/internal/timeline"
)

var (
	startPattern = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	endPattern   = regexp.MustCompile(`silence_end:\s*(-?[\d.]+)`)
)

// parser accumulates silence intervals one report line at a time.
type parser struct {
	total    float64
	open     bool
	start    float64
	silences []timeline.Interval
}

func (p *parser) line(text string) {
	if m := startPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.open = true
			p.start = p.clamp(v)
		}
	}
	if m := endPattern.FindStringSubmatch(text); m != nil && p.open {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.close(p.clamp(v))
		}
	}
}

func (p *parser) close(end float64) {
	p.open = false
	if end > p.start {
		p.silences = append(p.silences, timeline.NewInterval(p.start, end))
	}
}

func (p *parser) finish() []timeline.Interval {
	if p.open {
		p.close(p.total)
	}
	return timeline.Merge(p.silences)
}

func (p *parser) clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if p.total > 0 && v > p.total {
		return p.total
	}
	return v
}

// ParseSilenceOutput reads a silencedetect report and returns the silent
// intervals within [0, total], closing a trailing open silence at total.
func ParseSilenceOutput(r io.Reader, total float64) ([]timeline.Interval, error) {
	p := &parser{total: total}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.line(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p.finish(), nil
}

// SpeechFromSilence returns the speech intervals complementing silence over
// [0, total] and the adjusted silence list. Speech shorter than minSegment is
// merged into the surrounding silence so the results still tile the range.
func SpeechFromSilence(silence []timeline.Interval, total, minSegment float64) (speech, adjusted []timeline.Interval) {
	if total <= 0 {
		return nil, nil
	}
	for _, iv := range timeline.Complement(silence, total) {
		if iv.Duration >= minSegment {
			speech = append(speech, iv)
		}
	}
	adjusted = timeline.Complement(speech, total)
	return speech, adjusted
}

// ToTimeline converts speech intervals into active timeline segments.
func ToTimeline(speech []timeline.Interval) []timeline.Segment {
	out := make([]timeline.Segment, 0, len(speech))
	for _, iv := range speech {
		out = append(out, timeline.NewSegment(iv.Start, iv.End))
	}
	return out
}
