//go:build !gui

package main

import "testing"

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{
			"short line untouched",
			"hello world",
			20,
			"hello world",
		},
		{
			"wraps at width",
			"one two three four",
			9,
			"one two\nthree\nfour",
		},
		{
			"paragraph break preserved",
			"first para\n\nsecond para",
			20,
			"first para\n\nsecond para",
		},
		{
			"long word split hard",
			"abcdefghij",
			4,
			"abcd\nefgh\nij",
		},
		{
			"zero width clamps to one",
			"ab",
			0,
			"a\nb",
		},
		{
			"empty input",
			"",
			10,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrapText(tt.text, tt.width); got != tt.want {
				t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestOpenErrorMessage(t *testing.T) {
	// Unknown errors pass through unchanged.
	err := errTest("disk on fire")
	if got := openErrorMessage("x.epub", err); got != "disk on fire" {
		t.Errorf("openErrorMessage() = %q, want passthrough", got)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
