package parser

import (
	"errors"
	"testing"
	"time"
)

func TestRoleFor(t *testing.T) {
	tests := []struct {
		header string
		want   Role
	}{
		{"rating", RoleRating},
		{"totalReviews", RoleCount},
		{"total_reviews", RoleCount},
		{"prices", RolePrice},
		{"helpfulVotes", RoleCount},
		{"date", RoleDate},
		{"verified", RoleVerified},
		{"title", RoleFreeText},
		{"body", RoleFreeText},
		{"name", RoleName},
		{"asin", RoleText},
		{"reviewUrl", RoleText},
		{"  Brand ", RoleText},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := RoleFor(tt.header); got != tt.want {
				t.Errorf("RoleFor(%q) = %s, want %s", tt.header, got, tt.want)
			}
		})
	}
}

func TestNormalizeMissingValues(t *testing.T) {
	tests := []struct {
		name   string
		header string
		raw    any
		want   any
	}{
		{name: "total reviews nil", header: "total_reviews", raw: nil, want: int64(0)},
		{name: "rating blank", header: "rating", raw: "", want: int64(0)},
		{name: "price whitespace", header: "prices", raw: "   ", want: int64(0)},
		{name: "helpful nil", header: "helpfulVotes", raw: nil, want: int64(0)},
		{name: "title nil", header: "title", raw: nil, want: "N/A"},
		{name: "body blank", header: "body", raw: "", want: "N/A"},
		{name: "name nil", header: "name", raw: nil, want: "Anonymous"},
		{name: "verified nil", header: "verified", raw: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(RoleFor(tt.header), tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNormalizeMissingWithoutDefault(t *testing.T) {
	_, err := Normalize(RoleFor("brand"), nil)
	var missing *MissingValueError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingValueError, got %v", err)
	}
	if missing.Role != RoleText {
		t.Fatalf("role=%s, want text", missing.Role)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "truncates at first comma", input: "$1,299.00", expected: "1"},
		{name: "multiple prices keeps first", input: "$199.99, $249.99", expected: "199.99"},
		{name: "single price kept whole", input: "$199.99", expected: "199.99"},
		{name: "pound symbol", input: "£51.77", expected: "51.77"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(RolePrice, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Normalize(%q) = %#v, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeDates(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"January 5, 2019", time.Date(2019, time.January, 5, 0, 0, 0, 0, time.UTC)},
		{"Sept 3, 2020", time.Date(2020, time.September, 3, 0, 0, 0, 0, time.UTC)},
		{"september 30, 2019", time.Date(2019, time.September, 30, 0, 0, 0, 0, time.UTC)},
		{"DEC 25, 2017", time.Date(2017, time.December, 25, 0, 0, 0, 0, time.UTC)},
		{"May 1, 2018", time.Date(2018, time.May, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Normalize(RoleDate, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			date, ok := got.(time.Time)
			if !ok {
				t.Fatalf("expected time.Time, got %T", got)
			}
			if !date.Equal(tt.want) {
				t.Errorf("Normalize(%q) = %s, want %s", tt.input, date, tt.want)
			}
		})
	}
}

func TestNormalizeInvalidDates(t *testing.T) {
	for _, input := range []string{"Foo 5, 2019", "Smarch 1, 2019", "February 30, 2019"} {
		t.Run(input, func(t *testing.T) {
			_, err := Normalize(RoleDate, input)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if parseErr.Input != input {
				t.Errorf("error input=%q, want %q", parseErr.Input, input)
			}
		})
	}
}

func TestParseHumanDateWrapsMonthError(t *testing.T) {
	_, err := ParseHumanDate("Smarch 1, 2019")

	var outer *ParseError
	if !errors.As(err, &outer) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if outer.Input != "Smarch 1, 2019" {
		t.Errorf("outer input=%q, want full date", outer.Input)
	}

	var inner *ParseError
	if !errors.As(outer.Err, &inner) {
		t.Fatalf("expected wrapped month ParseError, got %v", outer.Err)
	}
	if inner.Input != "Smarch" {
		t.Errorf("inner input=%q, want %q", inner.Input, "Smarch")
	}
}

func TestNormalizeLeavesFreeTextAlone(t *testing.T) {
	for _, input := range []string{"$5 cheaper elsewhere, sadly", "May 5, 2019"} {
		got, err := Normalize(RoleFreeText, input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != input {
			t.Errorf("free text changed: %q -> %#v", input, got)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []struct {
		role Role
		raw  any
	}{
		{RolePrice, "$1,299.00"},
		{RolePrice, "$199.99"},
		{RoleDate, "January 5, 2019"},
		{RoleCount, nil},
		{RoleFreeText, nil},
		{RoleName, ""},
		{RoleVerified, nil},
		{RoleText, "B00006I53S"},
		{RoleRating, "4.5"},
		{RoleCount, 12},
	}

	for _, in := range inputs {
		once, err := Normalize(in.role, in.raw)
		if err != nil {
			t.Fatalf("normalize %v: %v", in.raw, err)
		}
		twice, err := Normalize(in.role, once)
		if err != nil {
			t.Fatalf("normalize twice %v: %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent for %s %#v: %#v then %#v", in.role, in.raw, once, twice)
		}
	}
}

func TestMonthFromString(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Month
		wantErr bool
	}{
		{input: "jan", want: time.January},
		{input: "January", want: time.January},
		{input: "Sept", want: time.September},
		{input: "sep", want: time.September},
		{input: "nOv", want: time.November},
		{input: "Smarch", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := MonthFromString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MonthFromString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("MonthFromString(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
