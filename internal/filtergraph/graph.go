// Package filtergraph builds ffmpeg filter graphs as typed values and
// serializes them to ffmpeg's textual syntax only when the command line is
// assembled.
package filtergraph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"splicer/internal/services"
)

// Pad is a link label, written without brackets.
type Pad string

func (p Pad) String() string { return "[" + string(p) + "]" }

// inputStreamPattern matches pads that name input file streams such as 0:v.
var inputStreamPattern = regexp.MustCompile(`^\d+:[vas](:\d+)?$`)

// IsInputStream reports whether the pad references an input file stream
// rather than the output of another chain.
func (p Pad) IsInputStream() bool {
	return inputStreamPattern.MatchString(string(p))
}

// Arg is one filter option. An empty Key renders a positional value.
type Arg struct {
	Key   string
	Value string
}

// Filter is a single filter invocation.
type Filter struct {
	Name string
	Args []Arg
}

// NewFilter builds a filter from alternating key/value strings.
func NewFilter(name string, kv ...string) Filter {
	f := Filter{Name: name}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Args = append(f.Args, Arg{Key: kv[i], Value: kv[i+1]})
	}
	return f
}

func (f Filter) String() string {
	if len(f.Args) == 0 {
		return f.Name
	}
	parts := make([]string, 0, len(f.Args))
	for _, arg := range f.Args {
		if arg.Key == "" {
			parts = append(parts, arg.Value)
			continue
		}
		parts = append(parts, arg.Key+"="+arg.Value)
	}
	return f.Name + "=" + strings.Join(parts, ":")
}

// Chain is a linear sequence of filters between labelled pads.
type Chain struct {
	Inputs  []Pad
	Filters []Filter
	Outputs []Pad
}

func (c Chain) String() string {
	var b strings.Builder
	for _, in := range c.Inputs {
		b.WriteString(in.String())
	}
	for i, f := range c.Filters {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.String())
	}
	for _, out := range c.Outputs {
		b.WriteString(out.String())
	}
	return b.String()
}

// Graph is an ordered list of chains plus the pads exposed to -map.
type Graph struct {
	chains  []Chain
	outputs []Pad
}

// Add appends a chain.
func (g *Graph) Add(c Chain) {
	g.chains = append(g.chains, c)
}

// Expose marks pads as final outputs mapped into the output file.
func (g *Graph) Expose(pads ...Pad) {
	g.outputs = append(g.outputs, pads...)
}

// Chains returns a copy of the graph's chains.
func (g *Graph) Chains() []Chain {
	return append([]Chain(nil), g.chains...)
}

// Outputs returns the exposed pads.
func (g *Graph) Outputs() []Pad {
	return append([]Pad(nil), g.outputs...)
}

// Validate checks that every consumed pad was produced earlier or names an
// input stream, no label is produced twice or consumed twice, and every
// produced pad is either consumed or exposed.
func (g *Graph) Validate() error {
	if len(g.chains) == 0 {
		return invalid("graph has no chains")
	}
	produced := map[Pad]bool{}
	consumed := map[Pad]bool{}
	for i, c := range g.chains {
		if len(c.Filters) == 0 {
			return invalid(fmt.Sprintf("chain %d has no filters", i))
		}
		for _, in := range c.Inputs {
			if in.IsInputStream() {
				continue
			}
			if !produced[in] {
				return invalid(fmt.Sprintf("chain %d consumes unknown pad %s", i, in))
			}
			if consumed[in] {
				return invalid(fmt.Sprintf("pad %s consumed twice", in))
			}
			consumed[in] = true
		}
		for _, out := range c.Outputs {
			if out.IsInputStream() {
				return invalid(fmt.Sprintf("chain %d output %s shadows an input stream", i, out))
			}
			if produced[out] {
				return invalid(fmt.Sprintf("pad %s produced twice", out))
			}
			produced[out] = true
		}
	}
	exposed := map[Pad]bool{}
	for _, out := range g.outputs {
		if !produced[out] {
			return invalid(fmt.Sprintf("exposed pad %s is never produced", out))
		}
		if consumed[out] {
			return invalid(fmt.Sprintf("exposed pad %s is also consumed", out))
		}
		exposed[out] = true
	}
	for pad := range produced {
		if !consumed[pad] && !exposed[pad] {
			return invalid(fmt.Sprintf("pad %s is never consumed", pad))
		}
	}
	return nil
}

// String serializes the graph for -filter_complex.
func (g *Graph) String() string {
	parts := make([]string, 0, len(g.chains))
	for _, c := range g.chains {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ";")
}

// Seconds formats a timestamp with microsecond precision and no trailing zeros.
func Seconds(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// Escape applies both levels of ffmpeg escaping to an option value so it can
// be embedded in a filter graph description.
func Escape(value string) string {
	return escapeChars(escapeChars(value, `\':`), `\'[],;`)
}

func escapeChars(value, special string) string {
	var b strings.Builder
	b.Grow(len(value) + 8)
	for _, r := range value {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func invalid(msg string) error {
	return services.Wrap(services.ErrValidation, "filtergraph", "validate", msg, nil)
}
