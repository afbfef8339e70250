package ability

import "sort"

// Ability is the immutable capability set evaluated for one caller
type Ability struct {
	grants    map[Grant]struct{}
	anonymous bool
}

// NewAbility creates an ability holding exactly the given grants
func NewAbility(grants ...Grant) *Ability {
	a := &Ability{grants: make(map[Grant]struct{}, len(grants))}
	for _, g := range grants {
		a.grants[g] = struct{}{}
	}
	return a
}

// Build evaluates an identity into an ability. It never fails: unknown
// permission strings and empty role names simply produce no extra grants.
func Build(id *Identity) *Ability {
	if id == nil {
		a := NewAbility(Grant{ActionRead, SubjectStory})
		a.anonymous = true
		return a
	}

	if id.RoleName == RoleAdmin {
		return NewAbility(Grant{ActionManage, SubjectAll})
	}

	a := NewAbility(
		Grant{ActionRead, SubjectProfile},
		Grant{ActionUpdate, SubjectProfile},
	)

	storyRead := false
	for _, p := range id.Permissions {
		if g, ok := Lookup(p); ok {
			a.grants[g] = struct{}{}
		}
		if impliesStoryRead(p) {
			storyRead = true
		}
	}
	if storyRead {
		a.grants[Grant{ActionRead, SubjectStory}] = struct{}{}
	}

	return a
}

// Can reports whether any grant covers (action, subject). A nil ability
// permits nothing.
func (a *Ability) Can(action Action, subject Subject) bool {
	if a == nil {
		return false
	}
	for g := range a.grants {
		if g.Covers(action, subject) {
			return true
		}
	}
	return false
}

// Cannot is the negation of Can
func (a *Ability) Cannot(action Action, subject Subject) bool {
	return !a.Can(action, subject)
}

// IsAnonymous reports whether the ability was built without an identity
func (a *Ability) IsAnonymous() bool {
	return a == nil || a.anonymous
}

// Grants returns the grants in a stable order
func (a *Ability) Grants() []Grant {
	if a == nil {
		return nil
	}
	out := make([]Grant, 0, len(a.grants))
	for g := range a.grants {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Action < out[j].Action
	})
	return out
}
