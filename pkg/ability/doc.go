// Package ability evaluates a caller's role and permission strings into a
// queryable capability set.
//
// # Evaluation
//
// Build applies three rules in order:
//
//  1. No identity: the caller may only read stories.
//  2. Role ADMIN: the single grant (manage, all), which covers every query.
//  3. Anyone else: (read, Profile) and (update, Profile), plus one grant per
//     recognised permission string, plus (read, Story) when any permission
//     starts with "story:" or "content:".
//
// Unrecognised permission strings are ignored so that new permissions can be
// added to data before the code that understands them is deployed.
//
// # Querying
//
//	a := ability.Build(&ability.Identity{
//		RoleName:    "EDITOR",
//		Permissions: []string{"story:read", "story:update"},
//	})
//	if a.Cannot(ability.ActionUpdate, ability.SubjectStory) {
//		// reject
//	}
//
// Abilities are immutable and hold no resources. Build one per request from
// the caller's current permissions and discard it afterwards.
package ability
