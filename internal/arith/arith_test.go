package arith

import (
	"strings"
	"testing"
)

func TestAnswerTriggered(t *testing.T) {
	cases := []struct {
		q    string
		want string
	}{
		{"Ile to 2+2?", "4"},
		{"ile to 2 + 2", "4"},
		{"Policz 15*(3+1)", "60"},
		{"Oblicz 10-4*2", "2"},
		{"Jaki jest wynik: 100/4?", "25"},
		{"Ile to 50% z 200?", "100"},
		{"Ile to 12,5% z 80?", "10"},
		{"Ile to 7 % 3?", "1"},
		{"Ile to 1/2?", "0,5"},
		{"Ile to 10/4?", "2,5"},
		{"Ile to 2,5 + 2,5?", "5"},
		{"Ile to -3 + 5?", "2"},
		{"Policz (2+3)*(4-1)", "15"},
	}
	for _, tc := range cases {
		got, ok := Answer(tc.q)
		if !ok {
			t.Errorf("Answer(%q): no match, want %q", tc.q, tc.want)
			continue
		}
		if got != tc.want {
			t.Errorf("Answer(%q) = %q, want %q", tc.q, got, tc.want)
		}
	}
}

func TestAnswerNoMatch(t *testing.T) {
	cases := []string{
		"Jaka jest stolica Polski?",
		"Czy Polska jest w Europie?",
		"Ile to dwa plus dwa?",            // letters fail the whitelist
		"Ile to 2+2; rm -rf /?",           // injection attempt
		"Policz 2+",                       // dangling operator
		"Oblicz (2+3",                     // unclosed parenthesis
		"Ile to 1/0?",                     // division by zero
		"Ile to ?",                        // empty expression
		"Ile kosztuje bilet do Warszawy?", // trigger prefix "ile" alone is not enough
	}
	for _, q := range cases {
		if got, ok := Answer(q); ok {
			t.Errorf("Answer(%q) = %q, want no match", q, got)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{4, "4"},
		{2.5, "2,5"},
		{100.0000000001, "100"},
		{-3, "-3"},
		{0.3333333333333333, "0,3333333333"},
		// Whole numbers past the int64 range stay on the general branch.
		{1e300, "1e+300"},
		{-1e300, "-1e+300"},
	}
	for _, tc := range cases {
		if got := Format(tc.in); got != tc.want {
			t.Errorf("Format(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAnswerHugeProductKeepsSign(t *testing.T) {
	got, ok := Answer("Ile to 99999999999*99999999999?")
	if !ok {
		t.Fatal("expected a match")
	}
	if strings.HasPrefix(got, "-") {
		t.Fatalf("positive product answered %q", got)
	}
}
