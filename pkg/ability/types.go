package ability

// Action represents an operation kind that can be granted on a subject
type Action string

const (
	// ActionManage supersedes every other action on the same subject
	ActionManage  Action = "manage"
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionPublish Action = "publish"
)

// Subject represents a resource kind the system authorizes against
type Subject string

const (
	SubjectUser       Subject = "User"
	SubjectRole       Subject = "Role"
	SubjectStory      Subject = "Story"
	SubjectProfile    Subject = "Profile"
	SubjectContact    Subject = "Contact"
	SubjectPermission Subject = "Permission"
	SubjectContent    Subject = "Content"
	SubjectSettings   Subject = "Settings"
	// SubjectAll matches every subject
	SubjectAll Subject = "all"
)

// RoleAdmin is the role name that receives blanket authority
const RoleAdmin = "ADMIN"

// Actions returns the closed action vocabulary, wildcard included
func Actions() []Action {
	return []Action{
		ActionManage,
		ActionCreate,
		ActionRead,
		ActionUpdate,
		ActionDelete,
		ActionPublish,
	}
}

// Subjects returns the closed subject vocabulary, wildcard included
func Subjects() []Subject {
	return []Subject{
		SubjectUser,
		SubjectRole,
		SubjectStory,
		SubjectProfile,
		SubjectContact,
		SubjectPermission,
		SubjectContent,
		SubjectSettings,
		SubjectAll,
	}
}

// Valid reports whether the action belongs to the vocabulary
func (a Action) Valid() bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

// Valid reports whether the subject belongs to the vocabulary
func (s Subject) Valid() bool {
	for _, known := range Subjects() {
		if s == known {
			return true
		}
	}
	return false
}

// Grant is a single (action, subject) pair permitted by an ability
type Grant struct {
	Action  Action  `json:"action"`
	Subject Subject `json:"subject"`
}

// Covers reports whether the grant satisfies a query for (action, subject).
// manage matches any action and all matches any subject.
func (g Grant) Covers(action Action, subject Subject) bool {
	actionOK := g.Action == action || g.Action == ActionManage
	subjectOK := g.Subject == subject || g.Subject == SubjectAll
	return actionOK && subjectOK
}

// String returns the grant as "action:Subject"
func (g Grant) String() string {
	return string(g.Action) + ":" + string(g.Subject)
}

// Identity is the minimal caller record the engine evaluates.
// A nil *Identity means the caller is anonymous.
type Identity struct {
	RoleName    string   `json:"role_name"`
	Permissions []string `json:"permissions"`
}
