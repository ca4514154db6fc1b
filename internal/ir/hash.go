package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future encoding migration.
const (
	DomainFunction = "tppenforce/function/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FunctionHash computes a content hash of the live structure of f.
//
// Values are named positionally (arguments by index, results in document
// order), so the hash is independent of arena layout and of erased nodes:
// two functions that print identically hash identically. Unlike the printed
// form, the hash also covers the attributes the printer omits (indexing
// maps, iterator types, body).
func FunctionHash(f *Function) (string, error) {
	doc := CanonicalDoc(f)
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("FunctionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFunction, canonical), nil
}

// MustFunctionHash is like FunctionHash but panics on error.
// Use only in tests or when the function is known to be valid.
func MustFunctionHash(f *Function) string {
	h, err := FunctionHash(f)
	if err != nil {
		panic(err)
	}
	return h
}

// CanonicalDoc converts f to the map/slice form accepted by MarshalCanonical.
func CanonicalDoc(f *Function) map[string]any {
	names := make(map[ValueID]string, len(f.values))
	args := make([]any, len(f.args))
	for i, a := range f.args {
		names[a] = "arg" + strconv.Itoa(i)
		args[i] = f.values[a].typ.String()
	}

	next := 0
	nodes := make([]any, 0, len(f.body))
	for _, n := range f.body {
		nd := f.nodes[n]
		operands := make([]any, len(nd.operands))
		for i, v := range nd.operands {
			operands[i] = names[v]
		}
		results := make([]any, len(nd.results))
		for i, r := range nd.results {
			names[r] = strconv.Itoa(next)
			next++
			results[i] = f.values[r].typ.String()
		}
		nodes = append(nodes, map[string]any{
			"kind":     nd.kind.String(),
			"operands": operands,
			"results":  results,
			"attrs":    attrsDoc(nd.attrs),
		})
	}

	return map[string]any{
		"name":       f.Name,
		"ir_version": IRVersion,
		"args":       args,
		"nodes":      nodes,
	}
}

func attrsDoc(attrs Attrs) map[string]any {
	switch a := attrs.(type) {
	case ConstantAttrs:
		return map[string]any{"type": a.Type.String(), "value": a.Literal()}
	case ContractionAttrs:
		return map[string]any{
			"tag":            a.Tag,
			"indexing_maps":  stringsDoc(a.IndexingMaps),
			"iterator_types": stringsDoc(a.IteratorTypes),
			"combiner":       a.Combiner,
			"body":           a.Body,
		}
	case PadAttrs:
		return map[string]any{"low": intsDoc(a.Low), "high": intsDoc(a.High), "nofold": a.NoFold}
	case ExtractAttrs:
		return sliceDoc(a.SliceAttrs)
	case InsertAttrs:
		return sliceDoc(a.SliceAttrs)
	case EmptyAttrs:
		return map[string]any{"type": a.Type.String()}
	default:
		return map[string]any{}
	}
}

func sliceDoc(s SliceAttrs) map[string]any {
	return map[string]any{
		"offsets": intsDoc(s.Offsets),
		"sizes":   intsDoc(s.Sizes),
		"strides": intsDoc(s.Strides),
	}
}

func intsDoc(xs []int64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func stringsDoc(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
