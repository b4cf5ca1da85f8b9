package refdata

import (
	"slices"

	"github.com/google/uuid"
)

// Attributes is a bitmask of entity capabilities.
type Attributes uint32

const (
	AttrEditable Attributes = 1 << iota
	AttrDeletable

	AttrNone    Attributes = 0
	AttrDefault Attributes = AttrEditable | AttrDeletable
)

func (a Attributes) Has(flag Attributes) bool {
	return a&flag == flag
}

func (a Attributes) Editable() bool  { return a.Has(AttrEditable) }
func (a Attributes) Deletable() bool { return a.Has(AttrDeletable) }

func addID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	return slices.DeleteFunc(ids, func(v uuid.UUID) bool { return v == id })
}

func addString(values []string, v string) []string {
	if slices.Contains(values, v) {
		return values
	}
	return append(values, v)
}

func removeString(values []string, v string) []string {
	return slices.DeleteFunc(values, func(s string) bool { return s == v })
}
