// Package authz holds the role and ownership policy for every protected
// resource action. Decisions are pure functions of the actor and the request.
package authz

import "github.com/noah-isme/classroom-api/internal/models"

// Resource names a kind of protected entity.
type Resource string

const (
	ResourceAssignment   Resource = "assignment"
	ResourceSubmission   Resource = "submission"
	ResourceAnnouncement Resource = "announcement"
	ResourceDiscussion   Resource = "discussion"
	ResourceReply        Resource = "reply"
	ResourceNotification Resource = "notification"
	ResourceVoiceCall    Resource = "voice_call"
)

// Action names an operation on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionList   Action = "list"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionGrade  Action = "grade"
	ActionReply  Action = "reply"
	ActionExport Action = "export"
	ActionEnd    Action = "end"
)

// Decision is the outcome of a policy check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Allowed reports whether d permits the action.
func (d Decision) Allowed() bool {
	return d == Allow
}

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Actor is the authenticated caller. The zero value is anonymous.
// Username is carried for display only and never consulted by the policy.
type Actor struct {
	UserID   string
	Username string
	Role     models.UserRole
}

// Authenticated reports whether the actor carries an identity and a known role.
func (a Actor) Authenticated() bool {
	return a.UserID != "" && a.Role.Valid()
}

type requirement func(Actor) bool

func anyAuthenticated(a Actor) bool {
	return a.Authenticated()
}

func roleIs(role models.UserRole) requirement {
	return func(a Actor) bool {
		if !a.Authenticated() {
			return false
		}
		switch a.Role {
		case models.RoleInstructor, models.RoleStudent:
			return a.Role == role
		default:
			return false
		}
	}
}

type rule struct {
	resource Resource
	action   Action
}

var instructorOnly = roleIs(models.RoleInstructor)

// policy is the complete table; any (resource, action) pair not listed is denied.
var policy = map[rule]requirement{
	{ResourceAssignment, ActionCreate}: instructorOnly,
	{ResourceAssignment, ActionRead}:   anyAuthenticated,
	{ResourceAssignment, ActionList}:   anyAuthenticated,
	{ResourceAssignment, ActionExport}: instructorOnly,

	// Submission creation is open to every authenticated role, instructors included.
	{ResourceSubmission, ActionCreate}: anyAuthenticated,
	{ResourceSubmission, ActionRead}:   anyAuthenticated,
	{ResourceSubmission, ActionList}:   anyAuthenticated,
	{ResourceSubmission, ActionGrade}:  instructorOnly,

	{ResourceAnnouncement, ActionCreate}: instructorOnly,
	{ResourceAnnouncement, ActionUpdate}: instructorOnly,
	{ResourceAnnouncement, ActionDelete}: instructorOnly,
	{ResourceAnnouncement, ActionRead}:   anyAuthenticated,
	{ResourceAnnouncement, ActionList}:   anyAuthenticated,

	{ResourceDiscussion, ActionCreate}: instructorOnly,
	{ResourceDiscussion, ActionUpdate}: instructorOnly,
	{ResourceDiscussion, ActionDelete}: instructorOnly,
	{ResourceDiscussion, ActionRead}:   anyAuthenticated,
	{ResourceDiscussion, ActionList}:   anyAuthenticated,
	{ResourceDiscussion, ActionReply}:  anyAuthenticated,

	{ResourceReply, ActionCreate}: anyAuthenticated,
	{ResourceReply, ActionRead}:   anyAuthenticated,
	{ResourceReply, ActionList}:   anyAuthenticated,

	{ResourceNotification, ActionList}: anyAuthenticated,

	{ResourceVoiceCall, ActionCreate}: anyAuthenticated,
	// Ending also requires OwnedBy, checked against the stored row.
	{ResourceVoiceCall, ActionEnd}: anyAuthenticated,
}

// Authorize decides whether actor may perform action on resource.
func Authorize(actor Actor, resource Resource, action Action) Decision {
	req, ok := policy[rule{resource: resource, action: action}]
	if !ok || !req(actor) {
		return Deny
	}
	return Allow
}

// OwnedBy reports whether the authenticated actor is the owner identified by ownerID.
func OwnedBy(actor Actor, ownerID string) bool {
	return actor.Authenticated() && ownerID != "" && actor.UserID == ownerID
}

// ActorFromClaims builds an Actor from verified token claims. Claims carrying
// an unknown role yield an actor that fails every requirement.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	role, err := models.ParseUserRole(string(claims.Role))
	if err != nil {
		role = ""
	}
	return Actor{UserID: claims.UserID, Username: claims.Username, Role: role}
}
