package variant

import (
	"testing"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVariants() []domain.Variant {
	return []domain.Variant{
		{ID: "v1", Options: domain.OptionMap{"Color": "Red", "Size": "Small"}},
		{ID: "v2", Options: domain.OptionMap{"Color": "Red", "Size": "Large"}},
		{ID: "v3", Options: domain.OptionMap{"color": "Blue", "size": "Small"}},
		{ID: "v4", Options: nil},
	}
}

func ids(vs []domain.Variant) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.ID)
	}
	return out
}

func TestCanonicalize(t *testing.T) {
	t.Run("LowercasesKeys", func(t *testing.T) {
		got := Canonicalize(map[string]string{" Color ": "Red", "SIZE": "S"})
		assert.Equal(t, domain.OptionMap{"color": "Red", "size": "S"}, got)
	})

	t.Run("CollisionIsDeterministic", func(t *testing.T) {
		m := map[string]string{"color": "Blue", "Color": "Red"}
		for range 10 {
			assert.Equal(t, domain.OptionMap{"color": "Red"}, Canonicalize(m))
		}
	})

	t.Run("Nil", func(t *testing.T) {
		assert.Nil(t, Canonicalize(nil))
	})
}

func TestMatch(t *testing.T) {
	variants := testVariants()

	tests := []struct {
		name      string
		selection domain.OptionMap
		want      []string
	}{
		{"EmptySelection", domain.OptionMap{}, []string{"v1", "v2", "v3", "v4"}},
		{"NilSelection", nil, []string{"v1", "v2", "v3", "v4"}},
		{"PartialSelection", domain.OptionMap{"Color": "Red"}, []string{"v1", "v2"}},
		{"FullSelection", domain.OptionMap{"Color": "Red", "Size": "Large"}, []string{"v2"}},
		{"KeyCaseIgnored", domain.OptionMap{"COLOR": "Blue"}, []string{"v3"}},
		{"ValueCaseKept", domain.OptionMap{"color": "red"}, []string{}},
		{"UnknownKey", domain.OptionMap{"material": "Wool"}, []string{}},
		{"NoCombination", domain.OptionMap{"color": "Blue", "size": "Large"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Match(variants, tt.selection)))
		})
	}
}

func TestMatchDoesNotMutateInput(t *testing.T) {
	variants := testVariants()
	_ = Match(variants, domain.OptionMap{"Color": "Red"})
	assert.Equal(t, testVariants(), variants)
}

func TestResolve(t *testing.T) {
	variants := testVariants()

	t.Run("Resolved", func(t *testing.T) {
		r := Resolve(variants, domain.OptionMap{"color": "Blue"})
		assert.Equal(t, domain.Resolved, r.Status)
		require.NotNil(t, r.Variant)
		assert.Equal(t, "v3", r.Variant.ID)
	})

	t.Run("Ambiguous", func(t *testing.T) {
		r := Resolve(variants, domain.OptionMap{"color": "Red"})
		assert.Equal(t, domain.Ambiguous, r.Status)
		assert.Nil(t, r.Variant)
		assert.Len(t, r.Matches, 2)
	})

	t.Run("NoMatch", func(t *testing.T) {
		r := Resolve(variants, domain.OptionMap{"color": "Green"})
		assert.Equal(t, domain.NoMatch, r.Status)
		assert.Nil(t, r.Variant)
		assert.Empty(t, r.Matches)
	})
}

func TestOptions(t *testing.T) {
	got := Options([]string{"Size", "Color", "size"}, testVariants())
	want := []domain.Option{
		{Name: "size", Values: []string{"Small", "Large"}},
		{Name: "color", Values: []string{"Red", "Blue"}},
	}
	assert.Equal(t, want, got)
}

func TestCheckVocabulary(t *testing.T) {
	declared := []string{"Color", "Size"}

	assert.NoError(t, CheckVocabulary(declared, testVariants()[0]))
	assert.NoError(t, CheckVocabulary(declared, testVariants()[2]))

	err := CheckVocabulary(declared, testVariants()[3])
	assert.ErrorIs(t, err, ErrVocabularyMismatch)

	err = CheckVocabulary(declared, domain.Variant{
		ID:      "v5",
		Options: domain.OptionMap{"color": "Red", "material": "Wool"},
	})
	assert.ErrorIs(t, err, ErrVocabularyMismatch)
}
