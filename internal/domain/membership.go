package domain

// MembershipSet is the set of normalized product IDs belonging to one
// category. It is recomputed on every category selection and never stored.
type MembershipSet struct {
	ids map[NormalizedID]struct{}
}

// NewMembershipSet builds a set from raw identifiers. Empty identifiers are
// skipped and duplicates collapse.
func NewMembershipSet(ids ...Identifier) MembershipSet {
	set := MembershipSet{ids: make(map[NormalizedID]struct{}, len(ids))}
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		set.ids[Normalize(id)] = struct{}{}
	}
	return set
}

// Has reports whether the identifier is a member, ignoring case.
func (s MembershipSet) Has(id Identifier) bool {
	_, ok := s.ids[Normalize(id)]
	return ok
}

func (s MembershipSet) Len() int {
	return len(s.ids)
}

func (s MembershipSet) IsEmpty() bool {
	return len(s.ids) == 0
}
