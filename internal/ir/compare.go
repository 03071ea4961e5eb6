package ir

import (
	"cmp"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Equal reports whether two values are equal as document values.
//
// Numbers compare numerically regardless of integral or floating form,
// strings compare after NFC normalization, and arrays and objects compare
// element-wise. Null equals only null.
func Equal(a, b IRValue) bool {
	switch av := a.(type) {
	case IRNull:
		_, ok := b.(IRNull)
		return ok
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	case IRInt, IRFloat:
		c, ok := compareNumbers(a, b)
		return ok && c == 0
	case IRString:
		bv, ok := b.(IRString)
		return ok && normalize(string(av)) == normalize(string(bv))
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two values of the same orderable kind.
// Only numbers and strings are orderable; ok is false for any other
// combination, including mixed kinds.
func Compare(a, b IRValue) (c int, ok bool) {
	switch av := a.(type) {
	case IRInt, IRFloat:
		return compareNumbers(a, b)
	case IRString:
		bv, isStr := b.(IRString)
		if !isStr {
			return 0, false
		}
		return strings.Compare(normalize(string(av)), normalize(string(bv))), true
	default:
		return 0, false
	}
}

// Orderable reports whether values of kind k can be ordered by Compare.
func Orderable(k Kind) bool {
	return k == KindNumber || k == KindString
}

func compareNumbers(a, b IRValue) (int, bool) {
	switch av := a.(type) {
	case IRInt:
		switch bv := b.(type) {
		case IRInt:
			return cmp.Compare(av, bv), true
		case IRFloat:
			return compareIntFloat(int64(av), float64(bv))
		}
	case IRFloat:
		switch bv := b.(type) {
		case IRInt:
			c, ok := compareIntFloat(int64(bv), float64(av))
			return -c, ok
		case IRFloat:
			if math.IsNaN(float64(av)) || math.IsNaN(float64(bv)) {
				return 0, false
			}
			return cmp.Compare(av, bv), true
		}
	}
	return 0, false
}

// compareIntFloat compares i and f exactly. Converting i to float64 would
// round integers beyond 2^53 onto their float neighbours.
func compareIntFloat(i int64, f float64) (int, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= 0x1p63:
		return -1, true
	case f < -0x1p63:
		return 1, true
	}
	whole := math.Trunc(f)
	if c := cmp.Compare(i, int64(whole)); c != 0 {
		return c, true
	}
	// Same integral part; the fraction decides.
	return cmp.Compare(whole, f), true
}

func normalize(s string) string {
	return norm.NFC.String(s)
}

// SplitPath splits a dotted property path into segments.
// An empty path yields no segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Lookup resolves a property path inside a document.
//
// Each segment selects a field of an object, or an element of an array when
// the segment is a non-negative integer. ok is false as soon as a segment
// does not resolve; Lookup never panics.
func Lookup(doc IRObject, path []string) (IRValue, bool) {
	if doc == nil {
		return nil, false
	}
	var cur IRValue = doc
	for _, seg := range path {
		switch node := cur.(type) {
		case IRObject:
			next, exists := node[seg]
			if !exists {
				return nil, false
			}
			cur = next
		case IRArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}
