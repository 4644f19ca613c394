package core

import (
	"testing"
)

type countingCompiler struct {
	calls int
}

func (c *countingCompiler) Compile(shader *Shader, keywords KeywordSet) (*Variant, error) {
	c.calls++
	passes := make([]CompiledPass, len(shader.Passes))
	for i, p := range shader.Passes {
		passes[i] = CompiledPass{
			Name:       p.Name,
			Program:    c.calls,
			ParamIndex: map[string]int{"_BaseColor": 0, "_Model": 1},
		}
	}
	return &Variant{Passes: passes}, nil
}

func TestVariantCacheMemoizes(t *testing.T) {
	compiler := &countingCompiler{}
	cache := NewVariantCache(8)
	shader := NewShader("lit", ShaderPass{Name: "Forward"}, ShaderPass{Name: "Shadow"})

	local := NewKeywordSet("FOG")
	global := NewKeywordSet("SHADOWS_ON")

	v1, err := cache.Resolve(compiler, shader, local, global)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	v2, err := cache.Resolve(compiler, shader, local, global)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if v1 != v2 {
		t.Error("same keyword combination compiled twice")
	}
	if compiler.calls != 1 {
		t.Errorf("compiler calls: got %d, want 1", compiler.calls)
	}

	// Keyword order must not matter for the cache key.
	reordered := NewKeywordSet("SHADOWS_ON", "FOG")
	v3, err := cache.Resolve(compiler, shader, reordered, NewKeywordSet())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v3 != v1 {
		t.Error("merged keyword set keyed differently from equal split set")
	}
}

func TestVariantCacheEvicts(t *testing.T) {
	compiler := &countingCompiler{}
	cache := NewVariantCache(2)
	shader := NewShader("lit", ShaderPass{Name: "Forward"})

	a := NewKeywordSet("A")
	b := NewKeywordSet("B")
	c := NewKeywordSet("C")
	none := NewKeywordSet()

	mustResolve := func(ks KeywordSet) *Variant {
		t.Helper()
		v, err := cache.Resolve(compiler, shader, ks, none)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		return v
	}

	mustResolve(a)
	mustResolve(b)
	mustResolve(c) // evicts A
	if cache.Len() != 2 {
		t.Fatalf("cache length: got %d, want 2", cache.Len())
	}

	before := compiler.calls
	mustResolve(b) // still cached
	if compiler.calls != before {
		t.Error("B was evicted but should have been retained")
	}
	mustResolve(a) // recompiled
	if compiler.calls != before+1 {
		t.Error("A should have been evicted and recompiled")
	}
}

func TestMaterialParamCacheInvalidation(t *testing.T) {
	compiler := &countingCompiler{}
	shader := NewShader("lit", ShaderPass{Name: "Forward"})
	mat := NewMaterial("default", shader)

	v1, _ := compiler.Compile(shader, NewKeywordSet())
	if idx := mat.ParamIndex(v1, 0, "_BaseColor"); idx != 0 {
		t.Errorf("param index: got %d, want 0", idx)
	}
	if idx := mat.ParamIndex(v1, 0, "_Missing"); idx != -1 {
		t.Errorf("missing param: got %d, want -1", idx)
	}

	// A new compiled variant (new keyword set) invalidates cached lookups.
	v2, _ := compiler.Compile(shader, NewKeywordSet("FOG"))
	v2.Passes[0].ParamIndex = map[string]int{"_BaseColor": 7}
	if idx := mat.ParamIndex(v2, 0, "_BaseColor"); idx != 7 {
		t.Errorf("param index after variant change: got %d, want 7", idx)
	}
}

func TestShaderPassIndex(t *testing.T) {
	shader := NewShader("lit",
		ShaderPass{Name: "Forward"},
		ShaderPass{Name: "ShadowCaster"},
	)

	if idx := shader.PassIndex("ShadowCaster"); idx != 1 {
		t.Errorf("ShadowCaster: got %d, want 1", idx)
	}
	if idx := shader.PassIndex("Nope"); idx != -1 {
		t.Errorf("missing pass: got %d, want -1", idx)
	}
}
