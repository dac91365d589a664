// Package salutation derives letter salutations from customer names
package salutation

import (
	"strings"
)

// Salutations stored on customer profiles
const (
	Mr  = "Herr"
	Mrs = "Frau"
)

var titles = []string{"Dipl.-Ing.", "Prof.", "Dr.", "Ing.", "Herrn", "Herr", "Frau"}

// FirstName extracts the given name from a customer name
// handles "First Last", "Last, First" and academic titles
func FirstName(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	s = stripTitles(s)

	if last, first, ok := strings.Cut(s, ","); ok {
		if f := strings.Fields(first); len(f) > 0 {
			return f[0]
		}
		s = last
	}
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// FromAnswer maps a free text gender answer to a salutation, empty when undecided
// the female forms are checked first since "female" contains "male"
func FromAnswer(answer string) string {
	a := strings.ToLower(strings.TrimSpace(answer))
	switch {
	case strings.Contains(a, "weiblich"), strings.Contains(a, "female"):
		return Mrs
	case strings.Contains(a, "männlich"), strings.Contains(a, "male"):
		return Mr
	default:
		return ""
	}
}

// Greeting renders the opening line of a letter
func Greeting(sal, name string) string {
	last := lastName(name)
	switch sal {
	case Mr:
		return "Sehr geehrter Herr " + last + ","
	case Mrs:
		return "Sehr geehrte Frau " + last + ","
	default:
		return "Sehr geehrte Damen und Herren,"
	}
}

func stripTitles(s string) string {
	f := strings.Fields(s)
	out := f[:0]
	for _, tok := range f {
		if !isTitle(tok) {
			out = append(out, tok)
		}
	}
	return strings.Join(out, " ")
}

func isTitle(tok string) bool {
	for _, t := range titles {
		if tok == t {
			return true
		}
	}
	return false
}

func lastName(name string) string {
	s := strings.TrimSpace(name)
	if last, _, ok := strings.Cut(s, ","); ok {
		return strings.TrimSpace(last)
	}
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}
