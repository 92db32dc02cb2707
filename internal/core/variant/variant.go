// Package variant resolves option selections to product variants.
//
// Option names are canonicalized (trimmed, lowercased) before any map is
// built or probed. Option values are compared exactly.
package variant

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/niksmo/storefront/internal/core/domain"
)

var ErrVocabularyMismatch = errors.New("variant options differ from parent vocabulary")

// CanonicalName returns the form used for comparing option names.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CanonicalNames canonicalizes names and drops empty and repeated ones.
func CanonicalNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		cn := CanonicalName(n)
		if cn == "" || slices.Contains(out, cn) {
			continue
		}
		out = append(out, cn)
	}
	return out
}

// Canonicalize returns a copy of m with canonical keys.
//
// When two keys collapse into one, the value of the key that sorts first
// wins, so the result does not depend on map iteration order.
func Canonicalize(m map[string]string) domain.OptionMap {
	if m == nil {
		return nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(domain.OptionMap, len(m))
	for _, k := range keys {
		ck := CanonicalName(k)
		if ck == "" {
			continue
		}
		if _, ok := out[ck]; ok {
			continue
		}
		out[ck] = m[k]
	}
	return out
}

// Match returns the candidates whose options agree with selection on every
// key present in selection. Keys missing from selection are unconstrained,
// so an empty selection matches every candidate.
func Match(candidates []domain.Variant, selection domain.OptionMap) []domain.Variant {
	sel := Canonicalize(selection)

	matches := make([]domain.Variant, 0, len(candidates))
	for _, v := range candidates {
		if agrees(Canonicalize(v.Options), sel) {
			matches = append(matches, v)
		}
	}
	return matches
}

func agrees(options, sel domain.OptionMap) bool {
	for k, want := range sel {
		got, ok := options[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Resolve applies the cardinality policy to the result of Match.
//
// Exactly one match resolves the selection. Several matches leave it
// ambiguous and none of them is picked.
func Resolve(candidates []domain.Variant, selection domain.OptionMap) domain.Resolution {
	matches := Match(candidates, selection)

	switch len(matches) {
	case 0:
		return domain.Resolution{Status: domain.NoMatch}
	case 1:
		v := matches[0]
		return domain.Resolution{
			Status:  domain.Resolved,
			Matches: matches,
			Variant: &v,
		}
	default:
		return domain.Resolution{Status: domain.Ambiguous, Matches: matches}
	}
}

// Options lists the distinct values of every declared option name in
// first-seen order. Names are returned in declared order.
func Options(declared []string, variants []domain.Variant) []domain.Option {
	names := CanonicalNames(declared)
	opts := make([]domain.Option, 0, len(names))

	for _, name := range names {
		opt := domain.Option{Name: name}
		for _, v := range variants {
			value, ok := Canonicalize(v.Options)[name]
			if !ok || slices.Contains(opt.Values, value) {
				continue
			}
			opt.Values = append(opt.Values, value)
		}
		opts = append(opts, opt)
	}
	return opts
}

// CheckVocabulary reports whether the variant exposes exactly the declared
// option names.
func CheckVocabulary(declared []string, v domain.Variant) error {
	names := CanonicalNames(declared)
	options := Canonicalize(v.Options)

	if len(names) != len(options) {
		return fmt.Errorf(
			"%w: variant %q has %d options, want %d",
			ErrVocabularyMismatch, v.ID, len(options), len(names),
		)
	}

	for _, name := range names {
		if _, ok := options[name]; !ok {
			return fmt.Errorf(
				"%w: variant %q misses option %q",
				ErrVocabularyMismatch, v.ID, name,
			)
		}
	}
	return nil
}
