package filtergraph

import (
	"fmt"
	"strconv"

	"splicer/internal/services"
	"splicer/internal/timeline"
)

// Streams selects which input streams a composition carries.
type Streams struct {
	Video bool
	Audio bool
}

const (
	PadVideoOut Pad = "outv"
	PadAudioOut Pad = "outa"
)

// TrimConcat builds the trim/atrim + concat graph for segments, in the order
// given. The returned pads are the exposed outputs (video first).
func TrimConcat(segments []timeline.Segment, streams Streams) (*Graph, []Pad, error) {
	if len(segments) == 0 {
		return nil, nil, services.Wrap(services.ErrNoActiveSegments, "filtergraph", "trim concat", "no segments", nil)
	}
	if !streams.Video && !streams.Audio {
		return nil, nil, services.Wrap(services.ErrValidation, "filtergraph", "trim concat", "no video or audio stream", nil)
	}

	g := &Graph{}
	concatInputs := make([]Pad, 0, len(segments)*2)
	for i, seg := range segments {
		start := Seconds(seg.StartTime)
		end := Seconds(seg.EndTime)
		if streams.Video {
			out := Pad(fmt.Sprintf("v%d", i))
			g.Add(Chain{
				Inputs: []Pad{"0:v"},
				Filters: []Filter{
					NewFilter("trim", "start", start, "end", end),
					NewFilter("setpts", "", "PTS-STARTPTS"),
				},
				Outputs: []Pad{out},
			})
			concatInputs = append(concatInputs, out)
		}
		if streams.Audio {
			out := Pad(fmt.Sprintf("a%d", i))
			g.Add(Chain{
				Inputs: []Pad{"0:a"},
				Filters: []Filter{
					NewFilter("atrim", "start", start, "end", end),
					NewFilter("asetpts", "", "PTS-STARTPTS"),
				},
				Outputs: []Pad{out},
			})
			concatInputs = append(concatInputs, out)
		}
	}

	var outputs []Pad
	if streams.Video {
		outputs = append(outputs, PadVideoOut)
	}
	if streams.Audio {
		outputs = append(outputs, PadAudioOut)
	}
	g.Add(Chain{
		Inputs: concatInputs,
		Filters: []Filter{NewFilter("concat",
			"n", strconv.Itoa(len(segments)),
			"v", boolDigit(streams.Video),
			"a", boolDigit(streams.Audio),
		)},
		Outputs: outputs,
	})
	g.Expose(outputs...)
	if err := g.Validate(); err != nil {
		return nil, nil, err
	}
	return g, outputs, nil
}

// SubtitleStyle describes a burned-in subtitle track.
type SubtitleStyle struct {
	Path       string
	ForceStyle string
}

// ScalePad returns the -vf chain that letterboxes to exactly width x height at
// a fixed frame rate, optionally burning subtitles on top.
func ScalePad(width, height int, fps float64, subtitles *SubtitleStyle) Chain {
	w := strconv.Itoa(width)
	h := strconv.Itoa(height)
	filters := []Filter{
		NewFilter("scale", "", w, "", h, "force_original_aspect_ratio", "decrease"),
		NewFilter("pad", "", w, "", h, "", "(ow-iw)/2", "", "(oh-ih)/2"),
		NewFilter("setsar", "", "1"),
	}
	if fps > 0 {
		filters = append(filters, NewFilter("fps", "", strconv.FormatFloat(fps, 'f', -1, 64)))
	}
	if subtitles != nil && subtitles.Path != "" {
		sub := NewFilter("subtitles", "filename", Escape(subtitles.Path))
		if subtitles.ForceStyle != "" {
			sub.Args = append(sub.Args, Arg{Key: "force_style", Value: Escape(subtitles.ForceStyle)})
		}
		filters = append(filters, sub)
	}
	return Chain{Filters: filters}
}

func boolDigit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
