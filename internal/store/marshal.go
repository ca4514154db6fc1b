package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tppenforce/internal/ir"
)

// marshalCreated converts created node ids to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalCreated(created []int64) (string, error) {
	doc := make([]any, len(created))
	for i, n := range created {
		doc[i] = n
	}
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("marshal created: %w", err)
	}
	return string(data), nil
}

// unmarshalCreated parses canonical JSON TEXT to node ids.
func unmarshalCreated(data string) ([]int64, error) {
	if data == "" || data == "[]" {
		return []int64{}, nil
	}
	var created []int64
	if err := json.Unmarshal([]byte(data), &created); err != nil {
		return nil, fmt.Errorf("unmarshal created: %w", err)
	}
	return created, nil
}
