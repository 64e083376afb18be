package routing

import (
	"strings"
	"testing"
)

func TestExtractAreaCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"nanp e164", "+14155551234", "415"},
		{"nanp eleven digits", "1-650-555-0100", "650"},
		{"eleven digits other prefix", "44207946095", "442"},
		{"ten digits", "4155551234", "415"},
		{"formatted", "(415) 555-1234", "415"},
		{"dotted", "415.555.1234", "415"},
		{"seven digits", "555-1234", ""},
		{"nine digits", "415555123", ""},
		{"empty", "", ""},
		{"letters only", "anonymous", ""},
		{"mixed letters", "tel:415-555-1234;ext=9", "415"},
		{"twelve digits", "+44 20 7946 09581", "442"},
		{"non-ascii digits ignored", "٤١٥٥٥٥١٢٣٤", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAreaCode(tt.in); got != tt.want {
				t.Errorf("ExtractAreaCode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractAreaCodeMatchesDigitPrefix(t *testing.T) {
	inputs := []string{
		"12345678901234", "1-800-555-0100", " 212 555 0199 ", "9999999999", "123456789",
	}
	for _, in := range inputs {
		var digits strings.Builder
		for _, r := range in {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		d := digits.String()
		want := ""
		switch {
		case len(d) == 11 && d[0] == '1':
			want = d[1:4]
		case len(d) >= 10:
			want = d[:3]
		}
		if got := ExtractAreaCode(in); got != want {
			t.Errorf("ExtractAreaCode(%q) = %q, want %q", in, got, want)
		}
	}
}
