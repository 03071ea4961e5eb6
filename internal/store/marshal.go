package store

import (
	"fmt"

	"github.com/roach88/joindb/internal/ir"
)

// EncodeBody converts a document body to canonical JSON TEXT for storage.
func EncodeBody(body ir.IRObject) (string, error) {
	if body == nil {
		body = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(body)
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	return string(data), nil
}

// DecodeBody parses stored JSON TEXT back into a document body.
// Uses ir.UnmarshalIRValue so integers above 2^53 keep full precision.
func DecodeBody(data string) (ir.IRObject, error) {
	if data == "" {
		return nil, fmt.Errorf("decode body: empty")
	}
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("decode body: expected object, got %s", ir.KindOf(v))
	}
	return obj, nil
}
