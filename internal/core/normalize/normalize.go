// Package normalize provides the deterministic text folding used to compare customer identities
// Pipeline order
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFKC normalization and case folding (ß folds to ss)
// 3 German transliteration ä->ae ö->oe ü->ue
// 4 Decompose, strip combining and format marks, width fold
// 5 Punctuation to spaces, collapse whitespace and trim
// 6 Token level abbreviation unification eg str -> strasse
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalizer is concurrency safe when used with the pools below
type Normalizer struct {
	abbrev map[string]string
}

var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFKC, cases.Fold())
	},
}

var stripPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			runes.Remove(runes.In(unicode.Cf)),
			norm.NFC,
			width.Fold,
		)
	},
}

// umlauts run after case folding so only lower case forms are needed
var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// defaultAbbrev maps whole tokens to their canonical spelling
var defaultAbbrev = map[string]string{
	"str":    "strasse",
	"strase": "strasse",
	"pl":     "platz",
	"u":      "und",
	"nr":     "",
	"hnr":    "",
	"plz":    "",
	"dr":     "",
	"prof":   "",
}

// New constructs a Normalizer with the built in abbreviation table
func New() *Normalizer { return &Normalizer{abbrev: defaultAbbrev} }

// WithAbbreviations returns a copy that also knows extra token mappings
func (n *Normalizer) WithAbbreviations(extra map[string]string) *Normalizer {
	m := make(map[string]string, len(n.abbrev)+len(extra))
	for k, v := range n.abbrev {
		m[k] = v
	}
	for k, v := range extra {
		m[Text(k)] = Text(v)
	}
	return &Normalizer{abbrev: m}
}

// Normalize returns the folded comparison form of s
func (n *Normalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	s = runChain(&foldPool, s)
	s = umlauts.Replace(s)
	s = runChain(&stripPool, s)

	s = punctToSpace(s)
	return n.unifyTokens(s)
}

// Text normalizes with the default table
func Text(s string) string { return std.Normalize(s) }

var std = New()

func runChain(p *sync.Pool, s string) string {
	tr := p.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	p.Put(tr)
	if err != nil {
		return s
	}
	return out
}

// punctToSpace keeps letters and digits and turns everything else into a single space
func punctToSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

func (n *Normalizer) unifyTokens(s string) string {
	if s == "" {
		return s
	}
	toks := strings.Fields(s)
	out := toks[:0]
	for _, t := range toks {
		if v, ok := n.abbrev[t]; ok {
			if v != "" {
				out = append(out, v)
			}
			continue
		}
		// glued street suffix eg hauptstr -> hauptstrasse
		if len(t) > 3 && strings.HasSuffix(t, "str") && !hasDigit(t) {
			t = t + "asse"
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
