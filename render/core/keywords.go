package core

import (
	"slices"
	"strings"
)

// KeywordSet is a set of named feature flags selecting among precompiled
// shader program variants.
type KeywordSet map[string]struct{}

func NewKeywordSet(keywords ...string) KeywordSet {
	ks := make(KeywordSet, len(keywords))
	for _, k := range keywords {
		ks[k] = struct{}{}
	}
	return ks
}

func (ks KeywordSet) Enable(keyword string)  { ks[keyword] = struct{}{} }
func (ks KeywordSet) Disable(keyword string) { delete(ks, keyword) }

func (ks KeywordSet) Has(keyword string) bool {
	_, ok := ks[keyword]
	return ok
}

func (ks KeywordSet) Clone() KeywordSet {
	out := make(KeywordSet, len(ks))
	for k := range ks {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the keywords in lexical order.
func (ks KeywordSet) Sorted() []string {
	out := make([]string, 0, len(ks))
	for k := range ks {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Key returns a canonical string for cache keying. Two sets with the same
// keywords produce the same key regardless of insertion order.
func (ks KeywordSet) Key() string {
	return strings.Join(ks.Sorted(), ";")
}

// MergeKeywords combines local and global keyword sets into a new set.
func MergeKeywords(local, global KeywordSet) KeywordSet {
	out := make(KeywordSet, len(local)+len(global))
	for k := range local {
		out[k] = struct{}{}
	}
	for k := range global {
		out[k] = struct{}{}
	}
	return out
}
