package core

import (
	"container/list"
	"fmt"
)

// DefaultVariantCacheSize bounds the number of compiled variants kept alive.
// Long sessions toggling many keyword combinations evict least-recently-used
// variants instead of growing without bound.
const DefaultVariantCacheSize = 256

type variantKey struct {
	shader   ShaderID
	keywords string
}

type variantEntry struct {
	key     variantKey
	variant *Variant
}

// VariantCache memoizes shader compilation per (shader, merged keyword set).
// The goal is never to recompile the same keyword combination twice; a
// bounded LRU keeps process-lifetime growth in check.
//
// Not safe for concurrent use; the render thread is the single caller.
type VariantCache struct {
	capacity int
	entries  map[variantKey]*list.Element
	order    *list.List // front = most recently used
}

func NewVariantCache(capacity int) *VariantCache {
	if capacity <= 0 {
		capacity = DefaultVariantCacheSize
	}
	return &VariantCache{
		capacity: capacity,
		entries:  make(map[variantKey]*list.Element),
		order:    list.New(),
	}
}

// Resolve returns the compiled variant for the shader under the merged
// local+global keyword set, compiling through the supplied Compiler on a
// cache miss. The returned variant is shared; callers must not mutate it.
func (c *VariantCache) Resolve(compiler Compiler, shader *Shader, local, global KeywordSet) (*Variant, error) {
	if shader == nil {
		return nil, fmt.Errorf("variant cache: nil shader")
	}

	merged := MergeKeywords(local, global)
	key := variantKey{shader: shader.ID, keywords: merged.Key()}

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*variantEntry).variant, nil
	}

	variant, err := compiler.Compile(shader, merged)
	if err != nil {
		return nil, fmt.Errorf("compile shader %q [%s]: %w", shader.Name, key.keywords, err)
	}
	variant.Shader = shader.ID
	variant.Keywords = key.keywords

	el := c.order.PushFront(&variantEntry{key: key, variant: variant})
	c.entries[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*variantEntry).key)
	}

	return variant, nil
}

// Len returns the number of cached variants.
func (c *VariantCache) Len() int { return c.order.Len() }
