package engine

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/roach88/joindb/internal/ir"
)

// Row is one projected result row.
//
// Keys keep selection order. A selection whose value was missing has no
// key at all, which is how a left outer join's unmatched side shows up.
type Row struct {
	keys   []string
	values []ir.IRValue
}

// Keys returns the output keys present in this row, in selection order.
func (r Row) Keys() []string {
	return slices.Clone(r.keys)
}

// Len returns the number of keys present.
func (r Row) Len() int {
	return len(r.keys)
}

// Get returns the value for key. ok is false when the key is absent.
func (r Row) Get(key string) (ir.IRValue, bool) {
	i := slices.Index(r.keys, key)
	if i < 0 {
		return nil, false
	}
	return r.values[i], true
}

// Object returns the row as an unordered object.
func (r Row) Object() ir.IRObject {
	obj := make(ir.IRObject, len(r.keys))
	for i, k := range r.keys {
		obj[k] = r.values[i]
	}
	return obj
}

// MarshalJSON emits the row as a JSON object with keys in selection order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := ir.MarshalIRValue(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String renders the row as JSON, for logs and test failures.
func (r Row) String() string {
	data, err := r.MarshalJSON()
	if err != nil {
		return "<invalid row>"
	}
	return string(data)
}
