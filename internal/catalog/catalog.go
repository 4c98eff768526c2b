package catalog

import "fmt"

// Catalog holds one domain's closed status vocabulary: the canonical
// identifiers, their display labels, and an alias table mapping normalized
// legacy spellings onto canonical identifiers. Catalogs are built once at
// package init and never mutated, so they are safe for unsynchronized
// concurrent reads.
type Catalog struct {
	name    string
	labels  map[string]string
	aliases map[string]string
}

func newCatalog(name string, labels map[string]string, aliases map[string]string) *Catalog {
	c := &Catalog{
		name:    name,
		labels:  labels,
		aliases: make(map[string]string, len(aliases)),
	}
	for alias, canonical := range aliases {
		if _, ok := labels[canonical]; !ok {
			panic(fmt.Sprintf("catalog %s: alias %q targets unknown identifier %q", name, alias, canonical))
		}
		c.aliases[Normalize(alias)] = canonical
	}
	return c
}

func (c *Catalog) Name() string { return c.name }

// Has reports whether id is one of the domain's canonical identifiers.
func (c *Catalog) Has(id string) bool {
	_, ok := c.labels[id]
	return ok
}

// Label returns the display label for a canonical identifier, or the
// identifier itself when it is not part of the vocabulary.
func (c *Catalog) Label(id string) string {
	if label, ok := c.labels[id]; ok {
		return label
	}
	return id
}

// Resolve maps an arbitrary stored value onto a canonical identifier.
//
// Exact matches short-circuit before normalization: a handful of domains use
// capitalized display strings as their canonical identifiers, and those must
// round-trip bit-for-bit for backward compatibility. Otherwise the value is
// normalized and looked up first against the canonical set, then against the
// alias table. The second return is false when nothing matches.
func (c *Catalog) Resolve(raw string) (string, bool) {
	if _, ok := c.labels[raw]; ok {
		return raw, true
	}
	token := Normalize(raw)
	if token == "" {
		return "", false
	}
	if _, ok := c.labels[token]; ok {
		return token, true
	}
	if canonical, ok := c.aliases[token]; ok {
		return canonical, true
	}
	return "", false
}

// Identifiers returns the canonical identifiers of the domain. The order is
// unspecified; callers needing determinism must sort.
func (c *Catalog) Identifiers() []string {
	ids := make([]string, 0, len(c.labels))
	for id := range c.labels {
		ids = append(ids, id)
	}
	return ids
}

// Aliases returns a copy of the normalized alias table.
func (c *Catalog) Aliases() map[string]string {
	out := make(map[string]string, len(c.aliases))
	for alias, canonical := range c.aliases {
		out[alias] = canonical
	}
	return out
}
