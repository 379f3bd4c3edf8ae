// Package arith answers Polish arithmetic questions ("Ile to 2+2?") without
// touching the model adapter. A trigger phrase selects the question, a
// character whitelist guards the remaining expression, and a small
// recursive-descent parser evaluates it.
package arith

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	triggerRe = regexp.MustCompile(`^(?i:ile to|policz|oblicz|jaki jest wynik)[:\s]*`)
	// The whitelist is the sole safety gate before evaluation: digits,
	// operators, parentheses, percent and dot only (whitespace and commas
	// are normalized away first).
	safeExprRe = regexp.MustCompile(`^[0-9+\-*/().%]+$`)
	percentRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%\s*z\s*(\d+(?:\.\d+)?)`)
	wsRe       = regexp.MustCompile(`\s+`)
)

// Answer evaluates an arithmetic question. The second return value is false
// when the question is not triggered, fails the whitelist, or fails to
// evaluate; the router treats all three as "no match".
func Answer(q string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(q))
	s = strings.TrimSuffix(s, "?")
	if !triggerRe.MatchString(s) {
		return "", false
	}
	s = triggerRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", ".")

	// "a% z b" -> (a/100)*b, substituted back into the expression.
	if m := percentRe.FindStringSubmatchIndex(s); m != nil {
		a, errA := strconv.ParseFloat(s[m[2]:m[3]], 64)
		b, errB := strconv.ParseFloat(s[m[4]:m[5]], 64)
		if errA != nil || errB != nil {
			return "", false
		}
		val := a / 100.0 * b
		s = s[:m[0]] + strconv.FormatFloat(val, 'f', -1, 64) + s[m[1]:]
	}

	expr := wsRe.ReplaceAllString(s, "")
	if expr == "" || !safeExprRe.MatchString(expr) {
		return "", false
	}
	val, err := eval(expr)
	if err != nil {
		return "", false
	}
	return Format(val), true
}

// Format renders a numeric answer the way the answers file expects it:
// near-integers collapse to plain integers, everything else prints with up
// to 10 significant digits and a comma as the decimal separator.
func Format(val float64) string {
	// The int64 cast is only safe well inside the int64 range; past that
	// the general branch keeps the magnitude and sign intact.
	if math.Abs(val) < 1<<62 && math.Abs(val-math.Round(val)) < 1e-9 {
		return strconv.FormatInt(int64(math.Round(val)), 10)
	}
	return strings.ReplaceAll(fmt.Sprintf("%.10g", val), ".", ",")
}
