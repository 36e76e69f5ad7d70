package store

import "github.com/andresmejia3/gatekeeper/internal/types"

// Directory is an immutable id -> identity snapshot. It satisfies
// recognition.Resolver without holding the database connection.
type Directory map[int]types.Identity

// NewDirectory indexes identities by id.
func NewDirectory(identities []types.Identity) Directory {
	d := make(Directory, len(identities))
	for _, ident := range identities {
		d[ident.ID] = ident
	}
	return d
}

// Resolve returns the identity for id, or false if it was never enrolled.
func (d Directory) Resolve(id int) (types.Identity, bool) {
	ident, ok := d[id]
	return ident, ok
}

