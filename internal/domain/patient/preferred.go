package patient

import "github.com/google/uuid"

// Preferable is a collection member that can carry the single "preferred" mark.
type Preferable interface {
	comparable
	Key() uuid.UUID
	IsNew() bool
	IsPreferred() bool
	SetPreferred(bool)
	IsVoided() bool
}

// SelectPreferred marks chosen as the preferred member of items and clears the
// mark on every other non-voided member. Voided members keep whatever flag
// they had. chosen is appended when it is not already part of the collection,
// matched by pointer or by key for persisted members.
func SelectPreferred[T Preferable](items []T, chosen T) []T {
	out := make([]T, 0, len(items)+1)
	found := false
	for _, it := range items {
		if same(it, chosen) {
			found = true
			out = append(out, chosen)
			continue
		}
		if !it.IsVoided() && it.IsPreferred() {
			it.SetPreferred(false)
		}
		out = append(out, it)
	}
	chosen.SetPreferred(true)
	if !found {
		out = append(out, chosen)
	}
	return out
}

func same[T Preferable](a, b T) bool {
	if a == b {
		return true
	}
	return !a.IsNew() && !b.IsNew() && a.Key() == b.Key()
}

// ensurePreferred gives the collection a preferred member when none of its
// active members carries the mark. Several marked members collapse onto the
// last one.
func ensurePreferred[T Preferable](items []T) []T {
	var last T
	var zero T
	for _, it := range items {
		if !it.IsVoided() && it.IsPreferred() {
			last = it
		}
	}
	if last == zero {
		for _, it := range items {
			if !it.IsVoided() {
				last = it
				break
			}
		}
	}
	if last == zero {
		return items
	}
	return SelectPreferred(items, last)
}

// preferredOf returns the preferred active member, falling back to the first
// active one.
func preferredOf[T Preferable](items []T) (T, bool) {
	var first T
	var zero T
	for _, it := range items {
		if it.IsVoided() {
			continue
		}
		if it.IsPreferred() {
			return it, true
		}
		if first == zero {
			first = it
		}
	}
	return first, first != zero
}

// SetPreferredIdentifier makes id the patient's preferred identifier.
func (p *Patient) SetPreferredIdentifier(id *Identifier) error {
	if id.IsVoided() {
		return ErrPreferredVoided
	}
	id.PatientID = p.ID
	p.Identifiers = SelectPreferred(p.Identifiers, id)
	return nil
}

// SetPreferredName makes name the patient's preferred name.
func (p *Patient) SetPreferredName(name *PersonName) error {
	if name.IsVoided() {
		return ErrPreferredVoided
	}
	name.PatientID = p.ID
	p.Names = SelectPreferred(p.Names, name)
	return nil
}

// SetPreferredAddress makes addr the patient's preferred address.
func (p *Patient) SetPreferredAddress(addr *PersonAddress) error {
	if addr.IsVoided() {
		return ErrPreferredVoided
	}
	addr.PatientID = p.ID
	p.Addresses = SelectPreferred(p.Addresses, addr)
	return nil
}
