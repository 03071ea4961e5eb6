package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/joindb/internal/queryir"
)

// QueryDef is a named query compiled from a CUE definition.
type QueryDef struct {
	Name        string
	Description string
	Query       *queryir.Query
	Pos         token.Pos
}

// CompileQuery parses a CUE value into a QueryDef.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the query struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`query: staff: { select: [...], from: "employees" }`)
//	def, err := CompileQuery(v.LookupPath(cue.ParsePath("query.staff")))
//
// Fields:
//
//	description: string                      // optional
//	select:      [...string]                 // "emp.name AS n", "dept.*", "META(emp).id"
//	from:        string | {collection, as?}  // "*" is the database-wide source
//	join:        [...{kind?, collection, as?, on?}]
//	where:       string                      // predicate text, optional
//
// Join kind is "inner" (default), "left" or "cross".
func CompileQuery(v cue.Value) (*QueryDef, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &QueryDef{Pos: v.Pos(), Query: &queryir.Query{}}

	// Parse query name from struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Description = desc
	}

	var err error
	def.Query.Select, err = parseSelect(v)
	if err != nil {
		return nil, err
	}

	fromVal := v.LookupPath(cue.ParsePath("from"))
	if !fromVal.Exists() {
		return nil, &CompileError{
			Field:   "from",
			Message: "from is required",
			Pos:     v.Pos(),
		}
	}
	def.Query.Source, err = parseSource(fromVal, "from")
	if err != nil {
		return nil, err
	}

	def.Query.Joins, err = parseJoins(v)
	if err != nil {
		return nil, err
	}

	// Parse where clause (optional)
	if whereVal := v.LookupPath(cue.ParsePath("where")); whereVal.Exists() {
		def.Query.Where, err = parsePredicate(whereVal, "where")
		if err != nil {
			return nil, err
		}
	}

	return def, nil
}

// parseSelect reads the selection list. Each entry uses the SELECT list
// grammar of the statement language.
func parseSelect(v cue.Value) ([]queryir.Selection, error) {
	selVal := v.LookupPath(cue.ParsePath("select"))
	if !selVal.Exists() {
		return nil, &CompileError{
			Field:   "select",
			Message: "select is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := selVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var sels []queryir.Selection
	for iter.Next() {
		item := iter.Value()
		text, err := item.String()
		if err != nil {
			return nil, &CompileError{
				Field:   "select",
				Message: "each selection must be a string",
				Pos:     item.Pos(),
			}
		}
		sel, err := queryir.ParseSelection(text)
		if err != nil {
			return nil, &CompileError{
				Field:   "select",
				Message: fmt.Sprintf("%q: %v", text, err),
				Pos:     item.Pos(),
				Err:     err,
			}
		}
		sels = append(sels, sel)
	}

	if len(sels) == 0 {
		return nil, &CompileError{
			Field:   "select",
			Message: "at least one selection is required",
			Pos:     selVal.Pos(),
		}
	}
	return sels, nil
}

// parseSource reads either a bare collection name or {collection, as}.
func parseSource(v cue.Value, field string) (queryir.DataSource, error) {
	if name, err := v.String(); err == nil {
		if name == "" {
			return queryir.DataSource{}, &CompileError{
				Field:   field,
				Message: "collection name must be non-empty",
				Pos:     v.Pos(),
			}
		}
		return queryir.Source(name, ""), nil
	}

	collVal := v.LookupPath(cue.ParsePath("collection"))
	if !collVal.Exists() {
		return queryir.DataSource{}, &CompileError{
			Field:   field + ".collection",
			Message: "collection is required",
			Pos:     v.Pos(),
		}
	}
	coll, err := collVal.String()
	if err != nil {
		return queryir.DataSource{}, formatCUEError(err)
	}
	if coll == "" {
		return queryir.DataSource{}, &CompileError{
			Field:   field + ".collection",
			Message: "collection name must be non-empty",
			Pos:     collVal.Pos(),
		}
	}

	var alias string
	if asVal := v.LookupPath(cue.ParsePath("as")); asVal.Exists() {
		alias, err = asVal.String()
		if err != nil {
			return queryir.DataSource{}, formatCUEError(err)
		}
	}
	return queryir.Source(coll, alias), nil
}

// parseJoins reads the optional join list in order.
func parseJoins(v cue.Value) ([]queryir.JoinSpec, error) {
	joinVal := v.LookupPath(cue.ParsePath("join"))
	if !joinVal.Exists() {
		return nil, nil
	}

	iter, err := joinVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var joins []queryir.JoinSpec
	for iter.Next() {
		item := iter.Value()

		kind := queryir.JoinInner
		if kindVal := item.LookupPath(cue.ParsePath("kind")); kindVal.Exists() {
			s, err := kindVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			kind, err = parseJoinKind(s, kindVal.Pos())
			if err != nil {
				return nil, err
			}
		}

		src, err := parseSource(item, "join")
		if err != nil {
			return nil, err
		}

		spec := queryir.JoinSpec{Kind: kind, Source: src}
		onVal := item.LookupPath(cue.ParsePath("on"))
		switch {
		case onVal.Exists() && kind == queryir.JoinCross:
			return nil, &CompileError{
				Field:   "join.on",
				Message: "cross join cannot have an on predicate",
				Pos:     onVal.Pos(),
			}
		case onVal.Exists():
			spec.On, err = parsePredicate(onVal, "join.on")
			if err != nil {
				return nil, err
			}
		case kind != queryir.JoinCross:
			return nil, &CompileError{
				Field:   "join.on",
				Message: fmt.Sprintf("%s join requires an on predicate", strings.ToLower(kind.String())),
				Pos:     item.Pos(),
			}
		}

		joins = append(joins, spec)
	}
	return joins, nil
}

func parseJoinKind(s string, pos token.Pos) (queryir.JoinKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inner", "":
		return queryir.JoinInner, nil
	case "left", "left outer", "left_outer":
		return queryir.JoinLeftOuter, nil
	case "cross":
		return queryir.JoinCross, nil
	default:
		return 0, &CompileError{
			Field:   "join.kind",
			Message: fmt.Sprintf("invalid join kind %q (must be inner, left or cross)", s),
			Pos:     pos,
		}
	}
}

// parsePredicate parses predicate text held in a CUE string.
func parsePredicate(v cue.Value, field string) (queryir.Predicate, error) {
	text, err := v.String()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "predicate must be a string",
			Pos:     v.Pos(),
		}
	}
	pred, err := queryir.ParsePredicate(text)
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%q: %v", text, err),
			Pos:     v.Pos(),
			Err:     err,
		}
	}
	return pred, nil
}

// CompileQueries compiles every field of a `query` struct, in source
// order. Errors are collected rather than returned on the first failure.
func CompileQueries(v cue.Value) ([]QueryDef, []error) {
	queriesVal := v.LookupPath(cue.ParsePath("query"))
	if !queriesVal.Exists() {
		return nil, nil
	}

	iter, err := queriesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var defs []QueryDef
	var errs []error
	for iter.Next() {
		def, err := CompileQuery(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, *def)
	}
	return defs, errs
}
