package access

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"appraisal/internal/domain/workflow"
)

// Capability grants one action to one role in a set of statuses.
type Capability struct {
	Role     Role
	Action   Action
	Statuses []workflow.Status
}

var editable = []workflow.Status{
	workflow.StatusInDraft,
	workflow.StatusRejectedByChecker,
	workflow.StatusRejectedByApprover,
}

var submittable = []workflow.Status{
	workflow.StatusNotStarted,
	workflow.StatusInDraft,
	workflow.StatusRejectedByChecker,
	workflow.StatusRejectedByApprover,
}

var onlyChecker = []workflow.Status{workflow.StatusPendingChecker}
var onlyApprover = []workflow.Status{workflow.StatusPendingApprover}

var capabilities = []Capability{
	{RolePreparer, ActionRead, workflow.Statuses()},
	{RoleChecker, ActionRead, workflow.Statuses()},
	{RoleApprover, ActionRead, workflow.Statuses()},

	{RolePreparer, ActionWrite, editable},
	{RoleChecker, ActionWrite, onlyChecker},
	{RoleApprover, ActionWrite, onlyApprover},

	{RolePreparer, ActionSubmit, submittable},
	{RolePreparer, ActionWorkflow, submittable},

	{RoleChecker, ActionCheck, onlyChecker},
	{RoleApprover, ActionApprove, onlyApprover},

	{RoleChecker, ActionReject, onlyChecker},
	{RoleApprover, ActionReject, onlyApprover},
}

// Capabilities returns a copy of the capability table.
func Capabilities() []Capability {
	out := make([]Capability, 0, len(capabilities))
	for _, c := range capabilities {
		statuses := make([]workflow.Status, len(c.Statuses))
		copy(statuses, c.Statuses)
		out = append(out, Capability{Role: c.Role, Action: c.Action, Statuses: statuses})
	}
	return out
}

const capabilityModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// Enforcer evaluates the capability table. Subjects are roles, objects are
// statuses. Anything without an explicit grant is denied.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(capabilityModel)
	if err != nil {
		return nil, fmt.Errorf("access: model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("access: enforcer: %w", err)
	}

	var rules [][]string
	for _, c := range capabilities {
		for _, status := range c.Statuses {
			rules = append(rules, []string{string(c.Role), string(status), string(c.Action)})
		}
	}
	if _, err := e.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("access: policies: %w", err)
	}
	return &Enforcer{enforcer: e}, nil
}

func (e *Enforcer) CanPerform(role Role, action Action, status workflow.Status) bool {
	if role == RoleNone || role == "" {
		return false
	}
	ok, err := e.enforcer.Enforce(string(role), string(status), string(action))
	if err != nil {
		slog.Warn("capability check failed", "role", role, "action", action, "status", status, "err", err)
		return false
	}
	return ok
}

// CanPerformMany answers every action against one snapshot of the policy.
func (e *Enforcer) CanPerformMany(role Role, actions []Action, status workflow.Status) map[Action]bool {
	out := make(map[Action]bool, len(actions))
	if len(actions) == 0 {
		return out
	}
	if role == RoleNone || role == "" {
		for _, a := range actions {
			out[a] = false
		}
		return out
	}

	requests := make([][]interface{}, 0, len(actions))
	for _, a := range actions {
		requests = append(requests, []interface{}{string(role), string(status), string(a)})
	}
	results, err := e.enforcer.BatchEnforce(requests)
	if err != nil {
		slog.Warn("capability batch check failed", "role", role, "status", status, "err", err)
		for _, a := range actions {
			out[a] = false
		}
		return out
	}
	for i, a := range actions {
		out[a] = results[i]
	}
	return out
}

var defaultEnforcer = sync.OnceValue(func() *Enforcer {
	e, err := NewEnforcer()
	if err != nil {
		panic(err)
	}
	return e
})

// CanPerform checks the capability table through the shared enforcer.
func CanPerform(role Role, action Action, status workflow.Status) bool {
	return defaultEnforcer().CanPerform(role, action, status)
}

func CanPerformMany(role Role, actions []Action, status workflow.Status) map[Action]bool {
	return defaultEnforcer().CanPerformMany(role, actions, status)
}
