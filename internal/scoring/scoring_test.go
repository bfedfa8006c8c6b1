package scoring

import (
	"testing"
)

func TestScoreExactCodeWins(t *testing.T) {
	t.Parallel()

	got := Score(
		Subject{Tokens: []string{"he", "man", "origins"}, Codes: []string{"0887961938357"}},
		Subject{ID: 1, Tokens: []string{"skeletor"}, Codes: []string{"0887961938357"}},
	)
	if got.Score != ExactScore || got.Reason != ReasonExactEAN {
		t.Fatalf("Score = %+v, want 100 exact_ean", got)
	}
}

func TestScoreIdenticalNamesStayBelowExact(t *testing.T) {
	t.Parallel()

	tokens := []string{"flocked", "he", "man", "origins"}
	got := Score(Subject{Tokens: tokens}, Subject{ID: 2, Tokens: tokens})
	if got.Reason != ReasonFuzzyName {
		t.Fatalf("reason = %s, want fuzzy_name", got.Reason)
	}
	if got.Score != fuzzyCeiling {
		t.Fatalf("score = %v, want %v", got.Score, fuzzyCeiling)
	}
}

func TestRankExactOutranksFuzzy(t *testing.T) {
	t.Parallel()

	offer := Subject{Tokens: []string{"he", "man", "origins"}, Codes: []string{"12345678"}}
	fuzzy := Subject{ID: 1, Tokens: []string{"he", "man", "origins"}}
	exact := Subject{ID: 2, Tokens: []string{"battle", "cat"}, Codes: []string{"12345678"}}

	ranked := []Ranked{
		{ID: fuzzy.ID, Result: Score(offer, fuzzy)},
		{ID: exact.ID, Result: Score(offer, exact)},
	}
	Rank(ranked)

	if ranked[0].ID != exact.ID || ranked[0].Reason != ReasonExactEAN {
		t.Fatalf("first = %+v, want exact match on product 2", ranked[0])
	}
}

func TestRankBreaksTiesByID(t *testing.T) {
	t.Parallel()

	ranked := []Ranked{
		{ID: 9, Result: Result{Score: 80}},
		{ID: 3, Result: Result{Score: 80}},
		{ID: 5, Result: Result{Score: 90}},
	}
	Rank(ranked)

	want := []uint{5, 3, 9}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Fatalf("position %d = %d, want %d", i, ranked[i].ID, id)
		}
	}
}

func TestScoreShortNamesUseOverlap(t *testing.T) {
	t.Parallel()

	got := Score(Subject{Tokens: []string{"orko"}}, Subject{ID: 1, Tokens: []string{"orko"}})
	if got.Reason != ReasonTokenOverlap || got.Score != shortNameCeiling {
		t.Fatalf("Score = %+v, want %v token_overlap", got, shortNameCeiling)
	}
}

func TestScoreCategoryHintOnWeakEvidence(t *testing.T) {
	t.Parallel()

	offer := Subject{Tokens: []string{"origins", "qwertyuiopasdfghjklzxcvbnm"}}
	product := Subject{
		ID:         4,
		Tokens:     []string{"masters", "origins", "raider", "sorceress", "wind"},
		LineTokens: []string{"origins"},
	}

	got := Score(offer, product)
	if got.Reason != ReasonCategoryHint {
		t.Fatalf("reason = %s, want category_hint", got.Reason)
	}
	if got.Score <= 0 || got.Score >= weakEvidence+categoryBonus {
		t.Fatalf("score = %v out of expected range", got.Score)
	}
}

func TestScoreCategoryBonusKeepsStrongReason(t *testing.T) {
	t.Parallel()

	offer := Subject{Tokens: []string{"battle", "cat", "origins"}, Categories: []string{"auction"}}
	product := Subject{ID: 1, Tokens: []string{"armor", "battle", "cat", "origins"}, Categories: []string{"auction"}}
	plain := Subject{ID: 1, Tokens: product.Tokens}

	with := Score(offer, product)
	without := Score(offer, plain)
	if with.Score <= without.Score {
		t.Fatalf("bonus not applied: %v <= %v", with.Score, without.Score)
	}
	if with.Reason != ReasonFuzzyName {
		t.Fatalf("reason = %s, want fuzzy_name", with.Reason)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	t.Parallel()

	a := Subject{Tokens: []string{"beast", "man", "origins"}}
	b := Subject{ID: 7, Tokens: []string{"beast", "man", "masters"}}
	first := Score(a, b)
	for i := 0; i < 10; i++ {
		if got := Score(a, b); got != first {
			t.Fatalf("run %d = %+v, want %+v", i, got, first)
		}
	}
}

func TestScoreEmptyTokens(t *testing.T) {
	t.Parallel()

	if got := Score(Subject{}, Subject{ID: 1, Tokens: []string{"orko"}}); got.Score != 0 {
		t.Fatalf("Score = %+v, want 0", got)
	}
}

func TestScoreRejectsDifferentCharacter(t *testing.T) {
	t.Parallel()

	offer := Subject{Tokens: []string{"2024", "armor", "battle", "masters", "origins", "skeletor"}}
	product := Subject{ID: 1, Tokens: []string{"2024", "armor", "battle", "he", "man", "masters", "origins"}}

	if got := Score(offer, product); got.Score != 0 {
		t.Fatalf("Score = %+v, want 0 for skeletor against he-man", got)
	}
}

func TestScoreRejectsUnnamedCharacter(t *testing.T) {
	t.Parallel()

	offer := Subject{Tokens: []string{"armor", "battle", "origins"}}
	product := Subject{ID: 1, Tokens: []string{"armor", "battle", "origins", "skeletor"}}

	if got := Score(offer, product); got.Score != 0 {
		t.Fatalf("Score = %+v, want 0 when only the product names a character", got)
	}
}

func TestScoreRejectsDifferentProductLine(t *testing.T) {
	t.Parallel()

	offer := Subject{Tokens: []string{"armor", "battle", "masters", "masterverse", "skeletor"}}
	byName := Subject{ID: 1, Tokens: []string{"armor", "battle", "masters", "origins", "skeletor"}}
	byLine := Subject{ID: 2, Tokens: []string{"armor", "battle", "skeletor"}, LineTokens: []string{"origins"}}

	for _, product := range []Subject{byName, byLine} {
		if got := Score(offer, product); got.Score != 0 {
			t.Fatalf("Score(product %d) = %+v, want 0 for masterverse against origins", product.ID, got)
		}
	}
}

func TestScoreAllowsMissingProductLine(t *testing.T) {
	t.Parallel()

	offer := Subject{Tokens: []string{"armor", "battle", "skeletor"}}
	product := Subject{ID: 1, Tokens: []string{"armor", "battle", "skeletor"}, LineTokens: []string{"origins"}}

	if got := Score(offer, product); got.Score <= 0 {
		t.Fatalf("Score = %+v, want a positive score when the listing names no line", got)
	}
}

func TestScoreMatchesCompactCharacterSpelling(t *testing.T) {
	t.Parallel()

	offer := Subject{Tokens: []string{"heman", "origins"}}
	product := Subject{ID: 1, Tokens: []string{"he", "man", "origins"}}

	if got := Score(offer, product); got.Score <= 0 {
		t.Fatalf("Score = %+v, want heman and he-man treated as one character", got)
	}
}
