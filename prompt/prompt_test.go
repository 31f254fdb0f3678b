package prompt

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestRowCount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		total   int
		want    int
		retries int
	}{
		{name: "blank seeds all", input: "\n", total: 100, want: 100},
		{name: "zero seeds none", input: "0\n", total: 100, want: 0},
		{name: "exact total", input: "100\n", total: 100, want: 100},
		{name: "above total re-prompted", input: "150\n40\n", total: 100, want: 40, retries: 1},
		{name: "negative and text re-prompted", input: "-1\nabc\n 7 \n", total: 100, want: 7, retries: 2},
		{name: "empty source", input: "1\n\n", total: 0, want: 0, retries: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := New(strings.NewReader(tt.input), &out)

			got, err := p.RowCount(tt.total)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("RowCount() = %d, want %d", got, tt.want)
			}
			if n := strings.Count(out.String(), "Input must be a whole number"); n != tt.retries {
				t.Fatalf("retries=%d, want %d\n%s", n, tt.retries, out.String())
			}
		})
	}
}

func TestYesNo(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"no\n", false},
		{"maybe\nn\n", false},
	}

	for _, tt := range tests {
		p := New(strings.NewReader(tt.input), io.Discard)
		got, err := p.YesNo("Rebuild?")
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("YesNo(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestChoose(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("0\n4\nx\n2\n"), &out)

	got, err := p.Choose("Menu", []string{"One", "Two", "Three"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2 {
		t.Fatalf("Choose() = %d, want 2", got)
	}
	if n := strings.Count(out.String(), "Invalid selection"); n != 3 {
		t.Fatalf("invalid answers=%d, want 3", n)
	}
	if !strings.Contains(out.String(), "\t3. Three\n") {
		t.Fatalf("options not listed:\n%s", out.String())
	}
}

func TestEndOfInput(t *testing.T) {
	p := New(strings.NewReader("abc\n"), io.Discard)
	if _, err := p.IntInRange("n: ", 1, 3); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if _, err := p.YesNo("again"); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
