package ability

import "strings"

// permissionGrants maps each recognised permission string to the grant it
// confers. Permission strings missing from the table confer nothing.
var permissionGrants = map[string]Grant{
	"user:read":   {ActionRead, SubjectUser},
	"user:create": {ActionCreate, SubjectUser},
	"user:update": {ActionUpdate, SubjectUser},
	"user:delete": {ActionDelete, SubjectUser},

	"role:read":   {ActionRead, SubjectRole},
	"role:create": {ActionCreate, SubjectRole},
	"role:update": {ActionUpdate, SubjectRole},
	"role:delete": {ActionDelete, SubjectRole},

	"story:read":    {ActionRead, SubjectStory},
	"story:create":  {ActionCreate, SubjectStory},
	"story:update":  {ActionUpdate, SubjectStory},
	"story:delete":  {ActionDelete, SubjectStory},
	"story:publish": {ActionPublish, SubjectStory},

	// content permissions act on stories
	"content:read":    {ActionRead, SubjectStory},
	"content:create":  {ActionCreate, SubjectStory},
	"content:update":  {ActionUpdate, SubjectStory},
	"content:delete":  {ActionDelete, SubjectStory},
	"content:publish": {ActionPublish, SubjectStory},

	"contact:create": {ActionCreate, SubjectContact},
	"contact:read":   {ActionRead, SubjectContact},
	"contact:update": {ActionUpdate, SubjectContact},
	"contact:delete": {ActionDelete, SubjectContact},
}

// storyReadPrefixes lists permission families that imply read access to stories
var storyReadPrefixes = []string{"story:", "content:"}

// Lookup returns the grant conferred by a permission string
func Lookup(permission string) (Grant, bool) {
	g, ok := permissionGrants[permission]
	return g, ok
}

// MappedPermissions returns every permission string the engine recognises
func MappedPermissions() []string {
	out := make([]string, 0, len(permissionGrants))
	for p := range permissionGrants {
		out = append(out, p)
	}
	return out
}

func impliesStoryRead(permission string) bool {
	for _, prefix := range storyReadPrefixes {
		if strings.HasPrefix(permission, prefix) {
			return true
		}
	}
	return false
}
