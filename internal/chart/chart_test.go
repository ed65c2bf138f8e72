package chart

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderMonthlySeries(t *testing.T) {
	out := Render([]Series{
		{Name: "Users", Values: Ints([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})},
		{Name: "Books", Values: Ints([]int{0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5})},
	}, Options{Title: "Monthly activity", Width: 60, Height: 6, Labels: MonthLabels})

	if !strings.Contains(out, "Monthly activity") {
		t.Fatalf("expected title in output")
	}
	if !strings.Contains(out, "Legend:") || !strings.Contains(out, "Users (solid)") || !strings.Contains(out, "Books (dashed)") {
		t.Fatalf("expected legend in output:\n%s", out)
	}
	if !strings.Contains(out, "Jan") || !strings.Contains(out, "Dec") {
		t.Fatalf("expected month labels:\n%s", out)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 1+6+1+1 {
		t.Fatalf("expected 9 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "12 │ ") {
		t.Fatalf("expected shared max on top axis, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[6], " 0 │ ") {
		t.Fatalf("expected zero on bottom axis, got %q", lines[6])
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes")
	}
}

func TestRenderFlatSeries(t *testing.T) {
	out := Render([]Series{{Name: "Zero", Values: make([]float64, 12)}}, Options{Width: 12, Height: 3})
	lines := strings.Split(out, "\n")
	if len(lines) < 3 || !strings.Contains(lines[2], "⡀") {
		t.Fatalf("expected zeros on the bottom row:\n%s", out)
	}
	if strings.ContainsAny(lines[0], "⡀⢀⣀") {
		t.Fatalf("expected empty top row:\n%s", out)
	}
}

func TestRenderNothing(t *testing.T) {
	if out := Render([]Series{{Name: "empty"}}, Options{}); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestPlotToBufferHasNoColor(t *testing.T) {
	var buf bytes.Buffer
	if err := Plot(&buf, []Series{{Name: "A", Values: []float64{1, 3, 2}}}, Options{Width: 20, Height: 4}); err != nil {
		t.Fatalf("plot: %v", err)
	}
	if buf.Len() == 0 || strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestWidthFor(t *testing.T) {
	if got := WidthFor(80); got != 80-6-3 {
		t.Fatalf("unexpected width %d", got)
	}
	if got := WidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width, got %d", got)
	}
}

func TestLabelRowDropsOverlaps(t *testing.T) {
	if got := labelRow(MonthLabels, 12); strings.Count(got, "Jan") != 1 || strings.Contains(got, "Feb") {
		t.Fatalf("unexpected label row %q", got)
	}
}

func TestFormatTableAlignsColumns(t *testing.T) {
	lines := FormatTable(
		[]string{"Name", "Members", "Created"},
		[][]string{
			{"Groceries", "12", "Jan 02, 2024"},
			{"家計簿", "3", "-"},
		},
		map[int]bool{1: true},
	)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Name       Members  Created" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Groceries       12  Jan 02, 2024" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "家計簿           3  -" {
		t.Fatalf("unexpected wide row line: %q", lines[2])
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdefgh", 5); got != "abcd…" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("abc", 5); got != "abc" {
		t.Fatalf("unexpected %q", got)
	}
}
