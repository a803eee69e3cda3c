package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraisal/internal/domain/workflow"
)

func TestResolveRolePrecedence(t *testing.T) {
	base := Context{DocumentOwnerID: "E1", CheckerID: "E2", ApproverID: "E3", Status: workflow.StatusPendingChecker}

	cases := []struct {
		current string
		want    Role
	}{
		{"E1", RolePreparer},
		{"E2", RoleChecker},
		{"E3", RoleApprover},
		{"E4", RoleNone},
		{"", RoleNone},
		{"  ", RoleNone},
	}
	for _, tc := range cases {
		c := base
		c.CurrentEmployeeID = tc.current
		assert.Equal(t, tc.want, ResolveRole(c), "current=%q", tc.current)
	}
}

func TestResolveRoleIgnoresBlankIdentities(t *testing.T) {
	c := Context{CurrentEmployeeID: "E9", DocumentOwnerID: "", CheckerID: "", ApproverID: "E9", Status: workflow.StatusPendingApprover}
	assert.Equal(t, RoleApprover, ResolveRole(c))
}

func TestResolveRoleCheckerIsApprover(t *testing.T) {
	c := Context{CurrentEmployeeID: "E2", DocumentOwnerID: "E1", CheckerID: "E2", ApproverID: "E2"}

	c.Status = workflow.StatusPendingChecker
	assert.Equal(t, RoleChecker, ResolveRole(c))

	c.Status = workflow.StatusPendingApprover
	assert.Equal(t, RoleApprover, ResolveRole(c))
}

func TestResolveRoleIsStable(t *testing.T) {
	c := Context{CurrentEmployeeID: "E2", DocumentOwnerID: "E1", CheckerID: "E2", ApproverID: "E3", Status: workflow.StatusPendingChecker}
	first := ResolveRole(c)
	second := ResolveRole(c)
	assert.Equal(t, first, second)
	assert.Equal(t, RoleChecker, first)
}

func TestCheckerAtPendingChecker(t *testing.T) {
	c := Context{CurrentEmployeeID: "E2", DocumentOwnerID: "E1", CheckerID: "E2", ApproverID: "E3", Status: workflow.StatusPendingChecker}
	role := ResolveRole(c)
	require.Equal(t, RoleChecker, role)

	assert.False(t, CanPerform(role, ActionApprove, c.Status))
	assert.True(t, CanPerform(role, ActionReject, c.Status))
	assert.True(t, CanPerform(role, ActionCheck, c.Status))
	assert.True(t, CanPerform(role, ActionWrite, c.Status))
	assert.False(t, CanPerform(role, ActionWorkflow, c.Status))
}

func TestOwnerWinsOverCheckerLookup(t *testing.T) {
	// the owner is never resolved as a checker of their own document, even
	// while it waits at PENDING_CHECKER
	c := Context{CurrentEmployeeID: "E1", DocumentOwnerID: "E1", CheckerID: "E2", ApproverID: "E3", Status: workflow.StatusPendingChecker}
	role := ResolveRole(c)
	require.Equal(t, RolePreparer, role)

	assert.False(t, CanPerform(role, ActionApprove, c.Status))
	assert.False(t, CanPerform(role, ActionReject, c.Status))
	assert.False(t, CanPerform(role, ActionCheck, c.Status))
	assert.True(t, CanPerform(role, ActionRead, c.Status))
}

func TestCapabilityTable(t *testing.T) {
	editable := map[workflow.Status]bool{
		workflow.StatusInDraft:            true,
		workflow.StatusRejectedByChecker:  true,
		workflow.StatusRejectedByApprover: true,
	}
	submittable := map[workflow.Status]bool{
		workflow.StatusNotStarted:         true,
		workflow.StatusInDraft:            true,
		workflow.StatusRejectedByChecker:  true,
		workflow.StatusRejectedByApprover: true,
	}

	for _, status := range workflow.Statuses() {
		for _, role := range []Role{RolePreparer, RoleChecker, RoleApprover} {
			assert.True(t, CanPerform(role, ActionRead, status), "%s read %s", role, status)
		}
		assert.False(t, CanPerform(RoleNone, ActionRead, status))

		assert.Equal(t, editable[status], CanPerform(RolePreparer, ActionWrite, status), "preparer write %s", status)
		assert.Equal(t, submittable[status], CanPerform(RolePreparer, ActionSubmit, status), "preparer submit %s", status)
		assert.Equal(t, submittable[status], CanPerform(RolePreparer, ActionWorkflow, status), "preparer workflow %s", status)

		pc := status == workflow.StatusPendingChecker
		pa := status == workflow.StatusPendingApprover
		assert.Equal(t, pc, CanPerform(RoleChecker, ActionWrite, status))
		assert.Equal(t, pc, CanPerform(RoleChecker, ActionCheck, status))
		assert.Equal(t, pc, CanPerform(RoleChecker, ActionReject, status))
		assert.False(t, CanPerform(RoleChecker, ActionApprove, status))
		assert.Equal(t, pa, CanPerform(RoleApprover, ActionWrite, status))
		assert.Equal(t, pa, CanPerform(RoleApprover, ActionApprove, status))
		assert.Equal(t, pa, CanPerform(RoleApprover, ActionReject, status))
		assert.False(t, CanPerform(RolePreparer, ActionApprove, status))
		assert.False(t, CanPerform(RolePreparer, ActionReject, status))
	}
}

func TestUnknownCombinationsDeny(t *testing.T) {
	assert.False(t, CanPerform(Role("hr"), ActionRead, workflow.StatusInDraft))
	assert.False(t, CanPerform(RolePreparer, Action("delete"), workflow.StatusInDraft))
	assert.False(t, CanPerform(RolePreparer, ActionWrite, workflow.Status("ARCHIVED")))
}

func TestCanPerformManyMatchesSingleChecks(t *testing.T) {
	actions := []Action{ActionRead, ActionWrite, ActionSubmit, ActionWorkflow, ActionCheck, ActionApprove, ActionReject}
	for _, status := range workflow.Statuses() {
		for _, role := range []Role{RolePreparer, RoleChecker, RoleApprover, RoleNone} {
			got := CanPerformMany(role, actions, status)
			require.Len(t, got, len(actions))
			for _, a := range actions {
				assert.Equal(t, CanPerform(role, a, status), got[a], "%s %s %s", role, a, status)
			}
		}
	}
	assert.Empty(t, CanPerformMany(RolePreparer, nil, workflow.StatusInDraft))
}

func TestRequiredCapability(t *testing.T) {
	cases := []struct {
		action workflow.Action
		status workflow.Status
		want   Action
		ok     bool
	}{
		{workflow.ActionCreate, workflow.StatusNotStarted, ActionSubmit, true},
		{workflow.ActionStartWorkflow, workflow.StatusInDraft, ActionWorkflow, true},
		{workflow.ActionConfirm, workflow.StatusPendingChecker, ActionCheck, true},
		{workflow.ActionConfirm, workflow.StatusPendingApprover, ActionApprove, true},
		{workflow.ActionConfirm, workflow.StatusInDraft, "", false},
		{workflow.ActionDecline, workflow.StatusPendingApprover, ActionReject, true},
		{workflow.ActionRevise, workflow.StatusRejectedByChecker, ActionWrite, true},
		{workflow.Action("archive"), workflow.StatusApproved, "", false},
	}
	for _, tc := range cases {
		got, ok := RequiredCapability(tc.action, tc.status)
		assert.Equal(t, tc.ok, ok, "%s@%s", tc.action, tc.status)
		assert.Equal(t, tc.want, got, "%s@%s", tc.action, tc.status)
	}
}

func TestCapabilitiesReturnsCopy(t *testing.T) {
	caps := Capabilities()
	require.NotEmpty(t, caps)
	caps[0].Statuses[0] = workflow.Status("MUTATED")
	assert.True(t, CanPerform(caps[0].Role, caps[0].Action, workflow.StatusNotStarted))
	assert.NotEqual(t, workflow.Status("MUTATED"), Capabilities()[0].Statuses[0])
}
