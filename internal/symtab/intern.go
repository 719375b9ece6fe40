// Package symtab implements string interning and scoped symbol tables.
//
// Grounded on picoc's table.c (TableEntry, ShortHashTable, TableGet) for
// the chained-hash, address-keyed lookup discipline, and on
// smasonuk-sicpu's symtable.go (EnterFunction/EnterScope/ExitScope/
// ExitFunction, a per-scope map stack plus a separate struct table) for
// the Go-side scope-stack shape. The teacher hashes by string content
// because its symbols never need cross-module identity; this package
// interns identifiers first so that symbol tables can hash by pointer
// value, per spec.md's C4 contract ("hashing is by address, not content,
// for speed").
package symtab

// Name is an interned identifier. Two Names with equal source spelling
// are always the same *Name, so symbol tables can use Name as a map key
// and get address-based hashing for free from Go's map implementation.
type Name struct {
	text string
}

func (n *Name) String() string { return n.text }

// Interner is a content-hashed pool mapping byte spellings to a single
// canonical *Name.
type Interner struct {
	pool map[string]*Name
}

// NewInterner creates an empty pool.
func NewInterner() *Interner {
	return &Interner{pool: make(map[string]*Name)}
}

// Intern returns the canonical *Name for text, creating it on first use.
func (in *Interner) Intern(text string) *Name {
	if n, ok := in.pool[text]; ok {
		return n
	}
	n := &Name{text: text}
	in.pool[text] = n
	return n
}

// Len reports how many distinct identifiers have been interned.
func (in *Interner) Len() int { return len(in.pool) }
