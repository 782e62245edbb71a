package main

import (
	"fmt"
	"strings"
)

// Translator maps source identifiers to target identifiers through an
// immutable dictionary. All methods are pure; a Translator is safe for
// concurrent use.
type Translator struct {
	dict map[string]string
}

// NewTranslator wraps a translation dictionary. The dictionary is not
// copied; callers must not mutate it after construction. Empty-string
// entries behave as "untranslated".
func NewTranslator(dict map[string]string) *Translator {
	return &Translator{dict: dict}
}

// Empty reports whether the translator operates in no-op mode.
func (tr *Translator) Empty() bool {
	return len(tr.dict) == 0
}

func (tr *Translator) lookup(s string) (string, bool) {
	v, ok := tr.dict[s]
	if !ok || v == "" {
		return s, false
	}
	return v, true
}

// Translate returns the translated form of an identifier, never empty.
// Bracket and quote decorations are stripped first. Whole-identifier
// lookup wins (table and view names); otherwise each underscore-delimited
// part is translated independently. When no part actually changes, the
// undecorated input is returned as-is to preserve its casing.
func (tr *Translator) Translate(identifier string) string {
	if tr.Empty() {
		return identifier
	}

	clean := stripIdentQuotes(identifier)

	if v, ok := tr.lookup(clean); ok {
		return v
	}

	parts := strings.Split(clean, "_")
	translated := make([]string, len(parts))
	for i, p := range parts {
		translated[i], _ = tr.lookup(p)
	}
	joined := strings.Join(translated, "_")

	if joined == clean {
		return clean
	}
	return joined
}

// stripIdentQuotes removes bracket and double-quote decorations from an
// identifier, e.g. [Students] or "Students" → Students.
func stripIdentQuotes(s string) string {
	r := strings.NewReplacer(`"`, "", "[", "", "]", "")
	return r.Replace(s)
}

// resolveColumnNames assigns final translated names to columns whose base
// translations collide within one table. Columns are processed in catalog
// order; collisions are disambiguated with _1, _2, ... suffixes, matched
// case-insensitively. DDL synthesis, data transfer, and constraint
// building all see the names resolved here, so the input order must be
// stable (ordinal position).
func resolveColumnNames(tr *Translator, originals []string) ([]string, map[string]string) {
	used := make(map[string]bool, len(originals))
	final := make([]string, len(originals))
	byFinal := make(map[string]string, len(originals))

	for i, orig := range originals {
		base := tr.Translate(orig)
		name := base
		for n := 1; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[strings.ToLower(name)] = true
		final[i] = name
		byFinal[name] = orig
	}
	return final, byFinal
}
