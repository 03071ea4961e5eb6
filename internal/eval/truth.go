package eval

// Truth is a three-valued logic result.
//
// Missing arises when a comparison reads a missing value. Filters keep a
// row only when the predicate is True.
type Truth uint8

const (
	False Truth = iota
	True
	Missing
)

// FromBool converts a Go bool.
func FromBool(b bool) Truth {
	if b {
		return True
	}
	return False
}

// And: False if either side is False, else Missing if either side is
// Missing, else True.
func (t Truth) And(o Truth) Truth {
	switch {
	case t == False || o == False:
		return False
	case t == Missing || o == Missing:
		return Missing
	default:
		return True
	}
}

// Or: True if either side is True, else Missing if either side is Missing,
// else False.
func (t Truth) Or(o Truth) Truth {
	switch {
	case t == True || o == True:
		return True
	case t == Missing || o == Missing:
		return Missing
	default:
		return False
	}
}

// Not swaps True and False. Missing stays Missing.
func (t Truth) Not() Truth {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Missing
	}
}

func (t Truth) String() string {
	switch t {
	case False:
		return "FALSE"
	case True:
		return "TRUE"
	case Missing:
		return "MISSING"
	default:
		return "INVALID"
	}
}
