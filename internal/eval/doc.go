// Package eval evaluates query expressions and predicates against a row of
// alias-bound documents, using three-valued logic (True, False, Missing).
package eval
