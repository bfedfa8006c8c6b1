// Package scoring computes how likely a listing and a catalog product describe
// the same item. Every function here is pure and deterministic.
package scoring

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/normalize"
)

// Reason tells a reviewer why a score was produced.
type Reason string

const (
	ReasonExactEAN     Reason = "exact_ean"
	ReasonTokenOverlap Reason = "token_overlap"
	ReasonFuzzyName    Reason = "fuzzy_name"
	ReasonCategoryHint Reason = "category_hint"
)

const (
	ExactScore = 100.0

	// fuzzyCeiling keeps any name-based score strictly below an identifier match.
	fuzzyCeiling = 99.0
	// shortNameCeiling keeps short-name matches below the default auto-link threshold.
	shortNameCeiling = 90.0

	categoryBonus = 5.0
	weakEvidence  = 50.0

	// Names whose compact token text is shorter than this are scored by overlap.
	shortNameRunes = 8

	jaccardWeight = 0.6
	editWeight    = 0.4
)

// Subject is one side of a comparison.
type Subject struct {
	ID         uint
	Tokens     []string // sorted, distinct
	Codes      []string // cleaned identifiers
	Categories []string // lower-case labels
	LineTokens []string // product-line tokens, candidate side only
}

// Result is a score in [0, 100] and the evidence that produced it.
type Result struct {
	Score  float64 `json:"score"`
	Reason Reason  `json:"reason"`
}

// Score compares a subject against a candidate.
func Score(subject, candidate Subject) Result {
	if sharesCode(subject.Codes, candidate.Codes) {
		return Result{Score: ExactScore, Reason: ReasonExactEAN}
	}
	if len(subject.Tokens) == 0 || len(candidate.Tokens) == 0 {
		return Result{Score: 0, Reason: ReasonTokenOverlap}
	}

	shared := intersectCount(subject.Tokens, candidate.Tokens)
	short := isShort(subject.Tokens) || isShort(candidate.Tokens)

	var (
		base    float64
		reason  Reason
		ceiling float64
	)
	if short {
		reason, ceiling = ReasonTokenOverlap, shortNameCeiling
	} else {
		reason, ceiling = ReasonFuzzyName, fuzzyCeiling
	}
	if conflicting(subject, candidate) {
		return Result{Score: 0, Reason: reason}
	}

	if short {
		base = 100 * float64(shared) / float64(max(len(subject.Tokens), len(candidate.Tokens)))
	} else {
		union := len(subject.Tokens) + len(candidate.Tokens) - shared
		jaccard := float64(shared) / float64(union)
		base = 100 * (jaccardWeight*jaccard + editWeight*editSimilarity(subject.Tokens, candidate.Tokens))
	}
	base = math.Min(base, ceiling)
	if base <= 0 {
		return Result{Score: 0, Reason: reason}
	}

	score := base
	if aligned(subject, candidate) {
		score = math.Min(base+categoryBonus, ceiling)
		if base < weakEvidence {
			reason = ReasonCategoryHint
		}
	}
	return Result{Score: round2(score), Reason: reason}
}

// Ranked is a scored candidate.
type Ranked struct {
	ID uint
	Result
}

// Rank orders results by score descending, then id ascending.
func Rank(items []Ranked) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}

// conflicting reports whether the two sides name different characters, only
// one of them names a character, or they name disjoint product lines.
func conflicting(subject, candidate Subject) bool {
	a, b := normalize.Identities(subject.Tokens), normalize.Identities(candidate.Tokens)
	if (len(a) > 0 || len(b) > 0) && intersectCount(a, b) == 0 {
		return true
	}
	x := normalize.Series(subject.Tokens, subject.LineTokens)
	y := normalize.Series(candidate.Tokens, candidate.LineTokens)
	return len(x) > 0 && len(y) > 0 && intersectCount(x, y) == 0
}

func sharesCode(a, b []string) bool {
	for _, x := range a {
		if x == "" {
			continue
		}
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// intersectCount counts common elements of two sorted, distinct slices.
func intersectCount(a, b []string) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

func isShort(tokens []string) bool {
	if len(tokens) <= 1 {
		return true
	}
	compact := 0
	for _, t := range tokens {
		compact += utf8.RuneCountInString(t)
	}
	return compact < shortNameRunes
}

// editSimilarity is 1 minus the length-normalized edit distance of the
// token-sorted names.
func editSimilarity(a, b []string) float64 {
	x, y := strings.Join(a, " "), strings.Join(b, " ")
	longest := utf8.RuneCountInString(x)
	if n := utf8.RuneCountInString(y); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(x, y))/float64(longest)
}

func aligned(subject, candidate Subject) bool {
	for _, c := range subject.Categories {
		if c == "" {
			continue
		}
		for _, d := range candidate.Categories {
			if c == d {
				return true
			}
		}
	}
	if len(candidate.LineTokens) == 0 {
		return false
	}
	return intersectCount(candidate.LineTokens, subject.Tokens) == len(candidate.LineTokens)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
