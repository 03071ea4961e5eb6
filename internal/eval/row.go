package eval

import (
	"github.com/roach88/joindb/internal/docdb"
)

// RowContext maps each alias of a query to a document, or to nothing.
//
// An unbound alias is how a left outer join represents "no match": every
// property read through it is missing, which is distinct from null.
type RowContext struct {
	aliases []string
	docs    map[string]*docdb.Document
}

// NewRowContext creates a context with every alias unbound.
// The first alias is the FROM source.
func NewRowContext(aliases ...string) *RowContext {
	return &RowContext{
		aliases: aliases,
		docs:    make(map[string]*docdb.Document, len(aliases)),
	}
}

// Bind binds alias to doc. A nil doc unbinds it.
func (r *RowContext) Bind(alias string, doc *docdb.Document) {
	if doc == nil {
		delete(r.docs, alias)
		return
	}
	r.docs[alias] = doc
}

// Unbind marks alias as missing.
func (r *RowContext) Unbind(alias string) {
	delete(r.docs, alias)
}

// Doc returns the document bound to alias. The empty alias means the
// FROM source. ok is false when the alias is unknown or unbound.
func (r *RowContext) Doc(alias string) (doc *docdb.Document, ok bool) {
	if alias == "" {
		if len(r.aliases) == 0 {
			return nil, false
		}
		alias = r.aliases[0]
	}
	doc, ok = r.docs[alias]
	return doc, ok
}

// Aliases returns the aliases in join order.
func (r *RowContext) Aliases() []string {
	return r.aliases
}
