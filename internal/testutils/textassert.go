package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
)

// TestingT is the subset of testing.T the text assertions need
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

type textOptions struct {
	trimSpace        bool
	trimLineEnds     bool
	ignoreEmptyLines bool
	colors           bool
}

// TextOption adjusts how AssertText normalizes both sides before comparing
type TextOption func(*textOptions)

// TrimSpace trims the whole text
func TrimSpace() TextOption { return func(o *textOptions) { o.trimSpace = true } }

// TrimLineEnds drops trailing spaces and tabs on every line
func TrimLineEnds() TextOption { return func(o *textOptions) { o.trimLineEnds = true } }

// IgnoreEmptyLines drops blank lines
func IgnoreEmptyLines() TextOption { return func(o *textOptions) { o.ignoreEmptyLines = true } }

// ColorDiff colors the failure diff
func ColorDiff() TextOption { return func(o *textOptions) { o.colors = true } }

// AssertText compares command output line by line and reports a unified diff
// on mismatch. It returns whether the texts matched.
func AssertText(t TestingT, expected, actual string, opts ...TextOption) bool {
	t.Helper()

	var o textOptions
	for _, opt := range opts {
		opt(&o)
	}
	want, got := o.normalize(expected), o.normalize(actual)
	if want == got {
		return true
	}

	edits := myers.ComputeEdits("", want, got)
	diff := fmt.Sprint(gotextdiff.ToUnified("expected", "actual", want, edits))
	if o.colors {
		diff = colorize(diff)
	}
	t.Errorf("Text mismatch, unified diff:\n%s", diff)
	return false
}

func (o textOptions) normalize(text string) string {
	if o.trimSpace {
		text = strings.TrimSpace(text)
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	out := lines[:0]
	for _, line := range lines {
		if o.trimLineEnds {
			line = strings.TrimRight(line, " \t")
		}
		if o.ignoreEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n") + "\n"
}

func colorize(diff string) string {
	red, green, cyan := color.New(color.FgRed), color.New(color.FgGreen), color.New(color.FgCyan)
	for _, c := range []*color.Color{red, green, cyan} {
		c.EnableColor()
	}

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			lines[i] = cyan.Sprint(line)
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		case strings.HasPrefix(line, "-"):
			lines[i] = red.Sprint(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = green.Sprint(line)
		}
	}
	return strings.Join(lines, "\n")
}
