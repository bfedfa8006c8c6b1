// Package normalize turns raw scraped listing text into comparable tokens,
// identifier codes and prices.
package normalize

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultCurrency is assumed when neither the price text nor the caller names one.
const DefaultCurrency = "EUR"

var (
	codePattern     = regexp.MustCompile(`\b\d{8,14}\b`)
	numberPattern   = regexp.MustCompile(`\d+`)
	priceRunPattern = regexp.MustCompile(`\d[\d.,]*`)
)

// noise are marketing and packaging words that carry no identity.
var noise = map[string]struct{}{
	"mattel": {}, "figure": {}, "figures": {}, "figura": {}, "figuras": {},
	"action": {}, "accion": {}, "toy": {}, "toys": {}, "juguete": {},
	"cm": {}, "inch": {}, "inches": {}, "wave": {}, "deluxe": {},
	"collection": {}, "coleccion": {}, "edition": {}, "edicion": {},
	"new": {}, "nuevo": {}, "nueva": {}, "box": {}, "caja": {}, "original": {},
	"sealed": {}, "precintado": {}, "envio": {}, "gratis": {}, "oferta": {},
	"the": {}, "of": {}, "de": {}, "del": {}, "la": {}, "el": {}, "los": {}, "las": {},
	"and": {}, "y": {}, "with": {}, "con": {}, "for": {}, "para": {},
	"a": {}, "an": {}, "en": {}, "por": {},
}

// synonyms collapse series spellings onto one token.
var synonyms = map[string]string{
	"motu":     "masters",
	"universe": "masters",
	"tmnt":     "turtles",
	"tortugas": "turtles",
	"origenes": "origins",
}

// identities maps a character to the token spellings it is listed under.
var identities = map[string][][]string{
	"he-man":      {{"he", "man"}, {"heman"}},
	"skeletor":    {{"skeletor"}},
	"teela":       {{"teela"}},
	"man-at-arms": {{"man", "at", "arms"}, {"manatarms"}},
	"beast-man":   {{"beast", "man"}, {"beastman"}},
	"trap-jaw":    {{"trap", "jaw"}, {"trapjaw"}},
	"evil-lyn":    {{"evil", "lyn"}, {"evillyn"}},
	"fisto":       {{"fisto"}},
	"ram-man":     {{"ram", "man"}, {"ramman"}},
	"orko":        {{"orko"}},
	"stratos":     {{"stratos"}},
	"mer-man":     {{"mer", "man"}, {"merman"}},
	"jitsu":       {{"jitsu"}},
	"tri-klops":   {{"tri", "klops"}, {"triklops"}},
	"hordak":      {{"hordak"}},
	"she-ra":      {{"she", "ra"}, {"shera"}},
}

// series are product-line tokens. Two lines never describe the same item.
var series = map[string]struct{}{
	"origins": {}, "masterverse": {}, "classics": {}, "cgi": {}, "netflix": {},
	"filmation": {}, "200x": {}, "vintage": {}, "commemorative": {},
	"revelation": {}, "revolution": {}, "mondo": {}, "super7": {}, "turtles": {},
}

// Offer is the normalized view of a raw listing.
type Offer struct {
	Name             string   `json:"name"`
	Tokens           []string `json:"tokens"`
	Numbers          []string `json:"numbers,omitempty"`
	Code             string   `json:"code,omitempty"`
	Price            float64  `json:"price"`
	Currency         string   `json:"currency"`
	PriceParseFailed bool     `json:"price_parse_failed"`
}

// Normalize cleans a raw listing. It never fails: an unreadable price yields
// Price 0 with PriceParseFailed set.
func Normalize(rawName, rawPrice, currencyHint string) Offer {
	name, tokens := Tokenize(rawName)
	price, ok := ParsePrice(rawPrice)

	return Offer{
		Name:             name,
		Tokens:           tokens,
		Numbers:          Numbers(rawName),
		Code:             ExtractCode(rawName),
		Price:            price,
		Currency:         DetectCurrency(rawPrice, currencyHint),
		PriceParseFailed: !ok,
	}
}

// Tokenize returns the cleaned display name (kept tokens in reading order)
// and the sorted set of distinct tokens.
func Tokenize(raw string) (string, []string) {
	words := strings.FieldsFunc(strings.ToLower(Fold(raw)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(words))
	ordered := make([]string, 0, len(words))
	for _, w := range words {
		if !isASCII(w) {
			continue
		}
		if mapped, ok := synonyms[w]; ok {
			w = mapped
		}
		if _, skip := noise[w]; skip {
			continue
		}
		if len(w) == 1 && !isDigits(w) {
			continue
		}
		if len(w) >= 8 && isDigits(w) {
			// identifier codes are matched separately
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		ordered = append(ordered, w)
	}

	tokens := append([]string(nil), ordered...)
	sort.Strings(tokens)
	return strings.Join(ordered, " "), tokens
}

// Identities returns the sorted character names the tokens spell out.
func Identities(tokens []string) []string {
	have := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		have[t] = struct{}{}
	}
	var out []string
	for name, spellings := range identities {
		for _, parts := range spellings {
			if containsAll(have, parts) {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Series returns the sorted distinct product-line tokens across the groups.
func Series(groups ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, g := range groups {
		for _, t := range g {
			if _, ok := series[t]; !ok {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func containsAll(set map[string]struct{}, parts []string) bool {
	for _, p := range parts {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}

// Fold strips diacritics: "Orígenes" becomes "Origenes".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Numbers returns the distinct digit runs of s in reading order, excluding
// identifier-length codes.
func Numbers(s string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, n := range numberPattern.FindAllString(s, -1) {
		if len(n) >= 8 {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ExtractCode finds an EAN/UPC-like code embedded in free text.
func ExtractCode(s string) string {
	return codePattern.FindString(s)
}

// CleanCode keeps the digits of an identifier and drops it when it is too
// short to be trusted.
func CleanCode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < 8 || b.Len() > 14 {
		return ""
	}
	return b.String()
}

// ParsePrice reads prices written as "12,99 €", "$1,299.00", "1.234,50" or "45".
// Only one figure is read: when the text holds several, the first one carrying
// a currency mark wins ("25,00 € + 3,99 envío" is 25). Several unmarked figures
// ("2x 15,00") are ambiguous. The boolean is false when no usable number is
// present.
func ParsePrice(raw string) (float64, bool) {
	runs := priceRunPattern.FindAllStringIndex(raw, -1)
	if len(runs) == 0 {
		return 0, false
	}
	run := runs[0]
	if len(runs) > 1 {
		found := false
		for _, r := range runs {
			if currencyMarked(raw, r[0], r[1]) {
				run, found = r, true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	s := strings.TrimRight(raw[run[0]:run[1]], ".,")

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		decimal, thousands := ",", "."
		if lastDot > lastComma {
			decimal, thousands = ".", ","
		}
		s = strings.ReplaceAll(s, thousands, "")
		s = strings.Replace(s, decimal, ".", 1)
	case lastComma >= 0:
		s = resolveSeparator(s, ",")
	case lastDot >= 0:
		s = resolveSeparator(s, ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

var currencyMarks = []string{"€", "$", "£", "EUR", "USD", "GBP"}

// currencyMarked reports whether a currency symbol or code sits right before
// or right after raw[start:end].
func currencyMarked(raw string, start, end int) bool {
	before := strings.ToUpper(strings.TrimRight(raw[:start], " "))
	after := strings.ToUpper(strings.TrimLeft(raw[end:], " "))
	for _, m := range currencyMarks {
		if strings.HasSuffix(before, m) || strings.HasPrefix(after, m) {
			return true
		}
	}
	return false
}

// resolveSeparator decides whether a lone separator is decimal or thousands.
// Repeated separators and a single group of exactly three digits after a short
// integer part ("1.299") are read as thousands.
func resolveSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) > 2 {
		return strings.Join(parts, "")
	}
	whole, frac := parts[0], parts[1]
	if len(frac) == 3 && whole != "" && whole != "0" && len(whole) <= 3 {
		return whole + frac
	}
	return whole + "." + frac
}

// DetectCurrency reads a currency symbol or code from the price text and
// falls back to the hint, then to DefaultCurrency.
func DetectCurrency(rawPrice, hint string) string {
	upper := strings.ToUpper(rawPrice)
	switch {
	case strings.Contains(rawPrice, "€") || strings.Contains(upper, "EUR"):
		return "EUR"
	case strings.Contains(rawPrice, "£") || strings.Contains(upper, "GBP"):
		return "GBP"
	case strings.Contains(rawPrice, "$") || strings.Contains(upper, "USD"):
		return "USD"
	}
	if hint = strings.TrimSpace(hint); hint != "" {
		return strings.ToUpper(hint)
	}
	return DefaultCurrency
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}
