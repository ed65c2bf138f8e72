package tui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestWrapTextBreaksAtSpaces(t *testing.T) {
	got := wrapText("Delete Asha and all their books", 12)
	want := "Delete Asha\nand all\ntheir books"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapTextSplitsLongWords(t *testing.T) {
	got := wrapText("abcdefgh", 3)
	if got != "abc\ndef\ngh" {
		t.Fatalf("unexpected wrap %q", got)
	}
}

func TestWrapTextWideRunes(t *testing.T) {
	got := wrapText("家計簿 家計簿", 6)
	for _, line := range strings.Split(got, "\n") {
		if w := runewidth.StringWidth(line); w > 6 {
			t.Fatalf("line %q is %d cells wide", line, w)
		}
	}
	if got != "家計簿\n家計簿" {
		t.Fatalf("unexpected wrap %q", got)
	}
}

func TestWrapTextKeepsNewlines(t *testing.T) {
	if got := wrapText("a b\nc", 10); got != "a b\nc" {
		t.Fatalf("unexpected wrap %q", got)
	}
	if got := wrapText("no limit", 0); got != "no limit" {
		t.Fatalf("expected text unchanged, got %q", got)
	}
}
