package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraisal/internal/domain/access"
	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/fixedpoint"
	"appraisal/internal/domain/importer"
	"appraisal/internal/domain/notifications"
	"appraisal/internal/domain/scoring"
	"appraisal/internal/domain/workflow"
)

const tenant = "t1"

type syncJobs struct {
	mu   sync.Mutex
	errs []error
}

func (j *syncJobs) Enqueue(jobType, tenantID string, run func(context.Context) (any, error)) {
	_, err := run(context.Background())
	j.mu.Lock()
	j.errs = append(j.errs, err)
	j.mu.Unlock()
}

type sentNotice struct {
	userID string
	ntype  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *recordingNotifier) Create(ctx context.Context, tenantID, userID, ntype, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{userID: userID, ntype: ntype})
	return nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *recordingMetrics) RecordTransition(action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, action+":"+outcome)
}

type fixture struct {
	svc     *Service
	store   *memStore
	notify  *recordingNotifier
	metrics *recordingMetrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := newMemStore(
		Employee{ID: "e1", Code: "E001", Name: "Owner", Rank: "officer", ManagerID: "e3", UserID: "u1"},
		Employee{ID: "e2", Code: "E002", Name: "Checker", Rank: "supervisor", UserID: "u2"},
		Employee{ID: "e3", Code: "E003", Name: "Approver", Rank: "manager", UserID: "u3"},
		Employee{ID: "e4", Code: "E004", Name: "Outsider", Rank: "officer", UserID: "u4"},
	)
	svc := NewService(store, scoring.DefaultPolicy())
	f := fixture{svc: svc, store: store, notify: &recordingNotifier{}, metrics: &recordingMetrics{}}
	svc.Notify = f.notify
	svc.Jobs = &syncJobs{}
	svc.Metrics = f.metrics
	return f
}

func as(employeeID string) Actor {
	return Actor{UserID: "u" + strings.TrimPrefix(employeeID, "e"), TenantID: tenant, EmployeeID: employeeID}
}

func (f fixture) createMerit(t *testing.T, checker string, weights ...fixedpoint.Weight) DocumentView {
	t.Helper()
	view, err := f.svc.CreateDocument(context.Background(), as("e1"), NewDocument{
		Kind: KindMerit, Year: 2025, CheckerID: checker, ApproverID: "e3",
	})
	require.NoError(t, err)
	for i, w := range weights {
		_, err := f.svc.AddCompetency(context.Background(), as("e1"), view.Document.ID, CompetencyItem{
			Name: "competency " + string(rune('A'+i)), Weight: w,
		})
		require.NoError(t, err)
	}
	return view
}

func (f fixture) status(t *testing.T, documentID string) Task {
	t.Helper()
	task, err := f.store.CurrentTask(context.Background(), tenant, documentID)
	require.NoError(t, err)
	return task
}

func TestCreateDocumentStartsInDraft(t *testing.T) {
	f := newFixture(t)
	view := f.createMerit(t, "e2")

	require.Len(t, view.Tasks, 1)
	assert.Equal(t, workflow.StatusInDraft, view.Tasks[0].Status)
	assert.Equal(t, workflow.StageDefinition, view.Tasks[0].Stage)
	assert.Equal(t, access.RolePreparer, view.Role)
	assert.Equal(t, DefaultPeriod, view.Document.Period)
	assert.Equal(t, workflow.StatusInDraft, f.status(t, view.Document.ID).Status)

	audits := f.store.audits()
	require.Len(t, audits, 2)
	assert.Equal(t, AuditDocumentCreate, audits[0].Action)
	assert.Equal(t, AuditTaskTransition, audits[1].Action)
}

func TestCreateDocumentValidation(t *testing.T) {
	cases := []struct {
		name  string
		in    NewDocument
		field string
	}{
		{"kind", NewDocument{Kind: "salary", Year: 2025, ApproverID: "e3"}, "kind"},
		{"year", NewDocument{Kind: KindBonus, Year: 1999, ApproverID: "e3"}, "year"},
		{"approver required", NewDocument{Kind: KindBonus, Year: 2025}, "approverId"},
		{"owner approves", NewDocument{Kind: KindBonus, Year: 2025, ApproverID: "e1"}, "approverId"},
		{"owner checks", NewDocument{Kind: KindBonus, Year: 2025, ApproverID: "e3", CheckerID: "e1"}, "checkerId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateDocument(context.Background(), as("e1"), tc.in)
			require.ErrorIs(t, err, ErrInvalidInput)
			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tc.field, inputErr.Field)
			assert.Empty(t, f.store.audits())
		})
	}
}

func TestCreateDocumentRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	f.createMerit(t, "")
	_, err := f.svc.CreateDocument(context.Background(), as("e1"), NewDocument{Kind: KindMerit, Year: 2025, ApproverID: "e3"})
	assert.ErrorIs(t, err, ErrDuplicateDocument)
}

func TestMeritWorkflowApprovesAtExactTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "e2", 1000, 1000, 1000)
	taskID := view.Tasks[0].ID

	task, err := f.svc.StartWorkflow(ctx, as("e1"), taskID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingChecker, task.Status)
	assert.NotNil(t, task.SubmittedAt)

	task, err = f.svc.Confirm(ctx, as("e2"), taskID, true)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingApprover, task.Status)

	task, err = f.svc.Confirm(ctx, as("e3"), taskID, true)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.Equal(t, workflow.StatusApproved, f.status(t, view.Document.ID).Status)

	assert.Equal(t, []sentNotice{
		{userID: "u2", ntype: notifications.TypeReviewPending},
		{userID: "u3", ntype: notifications.TypeReviewPending},
		{userID: "u1", ntype: notifications.TypeReviewApproved},
	}, f.notify.sent)
	assert.Contains(t, f.metrics.outcomes, "confirm:"+OutcomeApplied)
}

func TestMeritWeightMismatchLeavesStatusUnchanged(t *testing.T) {
	f := newFixture(t)
	view := f.createMerit(t, "e2", 1000, 1500)
	before := len(f.store.audits())

	_, err := f.svc.StartWorkflow(context.Background(), as("e1"), view.Tasks[0].ID)
	var weightErr *WeightError
	require.ErrorAs(t, err, &weightErr)
	assert.Equal(t, fixedpoint.Weight(2500), weightErr.Total)
	assert.Equal(t, fixedpoint.Weight(3000), weightErr.Limit)
	var mismatch *scoring.WeightTotalMismatchError
	assert.ErrorAs(t, err, &mismatch)

	assert.Equal(t, workflow.StatusInDraft, f.status(t, view.Document.ID).Status)
	assert.Len(t, f.store.audits(), before)
	assert.Empty(t, f.notify.sent)
	assert.Equal(t, "start_workflow:"+OutcomeRejectedWeights, f.metrics.outcomes[len(f.metrics.outcomes)-1])
}

func TestBonusCapFollowsOwnerRank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.CreateDocument(ctx, as("e1"), NewDocument{Kind: KindBonus, Year: 2025, ApproverID: "e3"})
	require.NoError(t, err)
	docID := view.Document.ID

	_, err = f.svc.AddLineItem(ctx, as("e1"), docID, LineItem{Name: "Revenue", Category: "financial", Type: "project", Weight: 5000})
	require.NoError(t, err)
	extra, err := f.svc.AddLineItem(ctx, as("e1"), docID, LineItem{Name: "NPS", Category: "CUSTOMER", Type: "ROUTINE", Weight: 1500})
	require.NoError(t, err)
	assert.Equal(t, "CUSTOMER", extra.Category)

	summary, err := f.svc.WeightSummary(ctx, as("e1"), docID)
	require.NoError(t, err)
	assert.False(t, summary.OK)
	assert.Equal(t, "officer", summary.Rank)
	assert.Equal(t, fixedpoint.Weight(6000), summary.Limit)

	_, err = f.svc.StartWorkflow(ctx, as("e1"), view.Tasks[0].ID)
	var capErr *scoring.WeightExceedsCapError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, int64(6500), capErr.Total)

	require.NoError(t, f.svc.DeleteLineItem(ctx, as("e1"), docID, extra.ID))
	task, err := f.svc.StartWorkflow(ctx, as("e1"), view.Tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingApprover, task.Status, "no checker goes straight to the approver")
}

func TestOversizedWeightsCannotWrapTheCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.CreateDocument(ctx, as("e1"), NewDocument{Kind: KindBonus, Year: 2025, ApproverID: "e3"})
	require.NoError(t, err)
	docID := view.Document.ID

	huge, err := fixedpoint.ParseWeight("46116860184273879.04")
	require.NoError(t, err)
	for _, w := range []fixedpoint.Weight{huge, fixedpoint.MaxWeight + 1} {
		_, err = f.svc.AddLineItem(ctx, as("e1"), docID, LineItem{Name: "Overflow", Category: "FINANCIAL", Type: "PROJECT", Weight: w})
		var inputErr *InputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, "weight", inputErr.Field)
	}

	// rows that reached storage some other way still fail the cap check
	f.store.mu.Lock()
	for i := 0; i < 2; i++ {
		id := f.store.state.nextID("li")
		f.store.state.lineItems[id] = LineItem{ID: id, DocumentID: docID, Name: "Overflow", Category: "FINANCIAL", Type: "PROJECT", Weight: huge}
	}
	f.store.mu.Unlock()

	summary, err := f.svc.WeightSummary(ctx, as("e1"), docID)
	require.NoError(t, err)
	assert.False(t, summary.OK)

	_, err = f.svc.StartWorkflow(ctx, as("e1"), view.Tasks[0].ID)
	var weightErr *WeightError
	require.ErrorAs(t, err, &weightErr)
	assert.ErrorIs(t, err, scoring.ErrTotalOverflow)
	assert.Equal(t, workflow.StatusInDraft, f.status(t, docID).Status)
}

func TestTransitionPermissionDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "e2", 1000, 1000, 1000)
	taskID := view.Tasks[0].ID

	_, err := f.svc.StartWorkflow(ctx, as("e4"), taskID)
	var denied *PermissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, access.RoleNone, denied.Role)

	_, err = f.svc.StartWorkflow(ctx, as("e2"), taskID)
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, access.RoleChecker, denied.Role)
	assert.Equal(t, access.ActionWorkflow, denied.Action)

	_, err = f.svc.StartWorkflow(ctx, as("e1"), taskID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, as("e3"), taskID, true)
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, access.RoleApprover, denied.Role)
	assert.Equal(t, access.ActionCheck, denied.Action)
	assert.Equal(t, workflow.StatusPendingChecker, f.status(t, view.Document.ID).Status)
	assert.Equal(t, "confirm:"+OutcomeDenied, f.metrics.outcomes[len(f.metrics.outcomes)-1])
}

func TestTransitionInvalidForStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "e2")
	taskID := view.Tasks[0].ID

	_, err := f.svc.Confirm(ctx, as("e1"), taskID, true)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.svc.Revise(ctx, as("e1"), taskID)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.svc.BeginStage(ctx, as("e1"), taskID)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = f.svc.Transition(ctx, as("e1"), "task-missing", workflow.ActionStartWorkflow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectThenRevise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "e2", 1000, 1000, 1000)
	taskID := view.Tasks[0].ID

	_, err := f.svc.StartWorkflow(ctx, as("e1"), taskID)
	require.NoError(t, err)
	task, err := f.svc.Confirm(ctx, as("e2"), taskID, false)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejectedByChecker, task.Status)

	task, err = f.svc.Revise(ctx, as("e1"), taskID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusInDraft, task.Status)

	_, err = f.svc.StartWorkflow(ctx, as("e1"), taskID)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, as("e2"), taskID, true)
	require.NoError(t, err)
	task, err = f.svc.Confirm(ctx, as("e3"), taskID, false)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRejectedByApprover, task.Status)

	task, err = f.svc.StartWorkflow(ctx, as("e1"), taskID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPendingChecker, task.Status)
	assert.Contains(t, f.notify.sent, sentNotice{userID: "u1", ntype: notifications.TypeReviewRejected})
}

func countTransitions(audits []audit.Entry, taskID string) int {
	n := 0
	for _, a := range audits {
		if a.Action == AuditTaskTransition && a.EntityID == taskID {
			n++
		}
	}
	return n
}

func TestConcurrentConfirmsApproveOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "", 1000, 1000, 1000)
	taskID := view.Tasks[0].ID
	task, err := f.svc.StartWorkflow(ctx, as("e1"), taskID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPendingApprover, task.Status)
	before := countTransitions(f.store.audits(), taskID)

	const attempts = 8
	results := make([]error, attempts)
	statuses := make([]workflow.Status, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task, err := f.svc.Confirm(ctx, as("e3"), taskID, true)
			results[i], statuses[i] = err, task.Status
		}(i)
	}
	wg.Wait()

	applied := 0
	for i, err := range results {
		if err == nil {
			applied++
			assert.Equal(t, workflow.StatusApproved, statuses[i])
			continue
		}
		var transitionErr *workflow.InvalidTransitionError
		if !errors.As(err, &transitionErr) {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, workflow.StatusApproved, f.status(t, view.Document.ID).Status)
	assert.Equal(t, before+1, countTransitions(f.store.audits(), taskID))
}

// racingTx lets another writer change the task between the read and the
// status write, the window a missing row lock would leave open.
type racingTx struct {
	*memTx
	race func(st *memState, taskID string)
}

func (t racingTx) LockTask(ctx context.Context, tenantID, taskID string) (Task, error) {
	task, err := t.memTx.LockTask(ctx, tenantID, taskID)
	if err == nil {
		t.race(t.st, taskID)
	}
	return task, err
}

type racingStore struct {
	*memStore
	race func(st *memState, taskID string)
}

func (s racingStore) WithTx(ctx context.Context, fn func(tx TxStore) error) error {
	return s.memStore.WithTx(ctx, func(tx TxStore) error {
		return fn(racingTx{memTx: tx.(*memTx), race: s.race})
	})
}

func TestTransitionRefusesStaleStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "", 1000, 1000, 1000)
	taskID := view.Tasks[0].ID
	_, err := f.svc.StartWorkflow(ctx, as("e1"), taskID)
	require.NoError(t, err)
	before := len(f.store.audits())

	racing := NewService(racingStore{memStore: f.store, race: func(st *memState, id string) {
		st.tasks[st.taskIndex(tenant, id)].Status = workflow.StatusRejectedByApprover
	}}, scoring.DefaultPolicy())
	metrics := &recordingMetrics{}
	racing.Metrics = metrics

	_, err = racing.Confirm(ctx, as("e3"), taskID, true)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, workflow.StatusPendingApprover, f.status(t, view.Document.ID).Status)
	assert.Len(t, f.store.audits(), before)
	assert.Equal(t, []string{"confirm:" + OutcomeConflict}, metrics.outcomes)
}

func (f fixture) approveCurrent(t *testing.T, documentID string) {
	t.Helper()
	ctx := context.Background()
	task := f.status(t, documentID)
	if task.Status == workflow.StatusNotStarted {
		_, err := f.svc.BeginStage(ctx, as("e1"), task.ID)
		require.NoError(t, err)
	}
	_, err := f.svc.StartWorkflow(ctx, as("e1"), task.ID)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, as("e2"), task.ID, true)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, as("e3"), task.ID, true)
	require.NoError(t, err)
}

func TestOpenNextStageWalksEveryStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "e2", 1000, 1000, 1000)
	docID := view.Document.ID

	_, err := f.svc.OpenNextStage(ctx, as("e1"), docID)
	require.ErrorIs(t, err, ErrStageNotApproved)

	for _, want := range []workflow.Stage{workflow.StageEvaluation1, workflow.StageEvaluation2} {
		f.approveCurrent(t, docID)
		_, err := f.svc.OpenNextStage(ctx, as("e4"), docID)
		require.ErrorIs(t, err, ErrPermissionDenied)

		opened, err := f.svc.OpenNextStage(ctx, as("e1"), docID)
		require.NoError(t, err)
		assert.Equal(t, want, opened.Stage)
		assert.Equal(t, workflow.StatusNotStarted, opened.Status)
		assert.Equal(t, "e2", opened.CheckedBy)
	}

	f.approveCurrent(t, docID)
	_, err = f.svc.OpenNextStage(ctx, as("e3"), docID)
	assert.ErrorIs(t, err, ErrNoNextStage)

	tasks, err := f.store.ListTasks(ctx, tenant, docID)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
	assert.Contains(t, f.notify.sent, sentNotice{userID: "u1", ntype: notifications.TypeReviewStage})
}

func TestPermissionsAnswersInOneCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "e2", 1000, 1000, 1000)
	_, err := f.svc.StartWorkflow(ctx, as("e1"), view.Tasks[0].ID)
	require.NoError(t, err)

	set, err := f.svc.Permissions(ctx, as("e2"), view.Document.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, access.RoleChecker, set.Role)
	assert.Equal(t, workflow.StatusPendingChecker, set.Status)
	assert.Equal(t, map[access.Action]bool{
		access.ActionRead:     true,
		access.ActionWrite:    true,
		access.ActionSubmit:   false,
		access.ActionWorkflow: false,
		access.ActionCheck:    true,
		access.ActionApprove:  false,
		access.ActionReject:   true,
	}, set.Actions)

	// outsiders learn neither the task nor its status
	set, err = f.svc.Permissions(ctx, as("e4"), view.Document.ID, []access.Action{access.ActionRead})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Empty(t, set.TaskID)
	assert.Empty(t, set.Status)

	admin := Actor{UserID: "admin", TenantID: tenant, Admin: true}
	set, err = f.svc.Permissions(ctx, admin, view.Document.ID, []access.Action{access.ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, access.RoleNone, set.Role)
	assert.False(t, set.Actions[access.ActionApprove])
}

func TestRecordLevelWritesCallerColumn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "e2", 1000, 1000, 1000)
	docID := view.Document.ID
	doc, err := f.store.GetDocument(ctx, tenant, docID)
	require.NoError(t, err)
	itemID := doc.Competencies[0].ID

	_, err = f.svc.RecordLevel(ctx, as("e2"), docID, itemID, 4)
	require.ErrorIs(t, err, ErrPermissionDenied, "checker cannot write while in draft")

	item, err := f.svc.RecordLevel(ctx, as("e1"), docID, itemID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Levels.Owner)

	_, err = f.svc.StartWorkflow(ctx, as("e1"), view.Tasks[0].ID)
	require.NoError(t, err)

	item, err = f.svc.RecordLevel(ctx, as("e2"), docID, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, scoring.RoleLevels{Owner: 3, Checker: 4}, item.Levels)

	_, err = f.svc.RecordLevel(ctx, as("e1"), docID, itemID, 5)
	require.ErrorIs(t, err, ErrPermissionDenied, "owner is read-only while pending")

	_, err = f.svc.AddCompetency(ctx, as("e2"), docID, CompetencyItem{Name: "extra", Weight: 100})
	require.ErrorIs(t, err, ErrPermissionDenied, "only the owner edits items")

	_, err = f.svc.RecordLevel(ctx, as("e2"), docID, itemID, 9)
	require.ErrorIs(t, err, ErrInvalidInput)

	scores, err := f.svc.Scores(ctx, as("e3"), docID)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.Weight(1000), scores.Scores.Owner)
	assert.Equal(t, fixedpoint.Weight(1333), scores.Scores.Checker)
}

func TestRecordAchievementRejectsUnknownTier(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RecordAchievement(context.Background(), as("e1"), "doc-1", "li-1", 75)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetDocumentRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "")

	_, err := f.svc.GetDocument(ctx, as("e4"), view.Document.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	admin := Actor{UserID: "admin", TenantID: tenant, Admin: true}
	got, err := f.svc.GetDocument(ctx, admin, view.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, access.RoleNone, got.Role)

	_, err = f.svc.GetDocument(ctx, as("e1"), "doc-missing")
	assert.ErrorIs(t, err, ErrNotFound)

	docs, err := f.svc.ListDocuments(ctx, as("e4"), DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	docs, err = f.svc.ListDocuments(ctx, admin, DocumentFilter{Year: 2025})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestInboxMarksActionableTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createMerit(t, "e2", 1000, 1000, 1000)
	_, err := f.svc.StartWorkflow(ctx, as("e1"), view.Tasks[0].ID)
	require.NoError(t, err)

	items, err := f.svc.Inbox(ctx, as("e2"), "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Actionable)
	assert.Equal(t, access.RoleChecker, items[0].Role)

	items, err = f.svc.Inbox(ctx, as("e3"), workflow.StatusPendingChecker)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Actionable)
}

const importHeader = "employee_code,year,name,weight,category,type,checker_code,approver_code\n"

func TestImportCreatesDocumentsPerEmployeeAndYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: "admin", TenantID: tenant, Admin: true}
	csv := importHeader +
		"E001,2025,Revenue,30,FINANCIAL,PROJECT,E002,\n" +
		"E001,2025,NPS,20.5,CUSTOMER,ROUTINE,E002,\n" +
		"E002,2025,Hiring,70.5,PEOPLE,DEVELOPMENT,,E003\n"

	report, err := f.svc.Import(ctx, admin, "kpi.csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, report.Documents, 2)
	require.Len(t, report.Validation.Warnings, 1)
	assert.Equal(t, CodeWeightOverCap, report.Validation.Warnings[0].Code)
	assert.Equal(t, 3, report.Validation.Warnings[0].Row)

	doc, err := f.store.GetDocument(ctx, tenant, report.Documents[0])
	require.NoError(t, err)
	assert.Equal(t, "e1", doc.OwnerID)
	assert.Equal(t, "e3", doc.ApproverID, "approver defaults to the manager")
	require.Len(t, doc.LineItems, 2)
	assert.Equal(t, fixedpoint.Weight(2050), doc.LineItems[1].Weight)

	task := f.status(t, doc.ID)
	assert.Equal(t, workflow.StatusNotStarted, task.Status)
	task, err = f.svc.BeginStage(ctx, as("e1"), task.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusInDraft, task.Status)
}

func TestImportRejectsWholeFileOnRowErrors(t *testing.T) {
	f := newFixture(t)
	admin := Actor{UserID: "admin", TenantID: tenant, Admin: true}
	csv := importHeader +
		"E001,2025,Revenue,30,FINANCIAL,PROJECT,E002,\n" +
		"E999,2025,Ghost,10,FINANCIAL,PROJECT,,E003\n" +
		"E001,2025,Other,10,FINANCIAL,PROJECT,E004,\n" +
		"E002,2025,Self,10,FINANCIAL,PROJECT,,E002\n"

	report, err := f.svc.Import(context.Background(), admin, "kpi.csv", strings.NewReader(csv))
	require.ErrorIs(t, err, ErrImportRejected)
	assert.False(t, report.Validation.OK)
	assert.Empty(t, report.Documents)

	codes := map[int]string{}
	for _, issue := range report.Validation.Errors {
		codes[issue.Row] = issue.Code
	}
	assert.Equal(t, map[int]string{
		2: CodeUnknownEmployee,
		3: CodeConflictingAssignees,
		4: CodeConflictingAssignees,
	}, codes)

	docs, err := f.store.ListDocuments(context.Background(), tenant, "", DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestImportReportsEveryProblemAtOnce(t *testing.T) {
	f := newFixture(t)
	admin := Actor{UserID: "admin", TenantID: tenant, Admin: true}
	csv := importHeader +
		"E001,2025,Revenue,30,FINANCIAL,BOGUS,E002,\n" +
		"E999,2025,Ghost,10,FINANCIAL,PROJECT,,E003\n" +
		"E001,1999,Old,10,FINANCIAL,PROJECT,E002,\n" +
		"E002,2025,Broken,abc,FINANCIAL,PROJECT,,E998\n"

	report, err := f.svc.Import(context.Background(), admin, "kpi.csv", strings.NewReader(csv))
	require.ErrorIs(t, err, ErrImportRejected)
	assert.False(t, report.Validation.OK)

	type found struct {
		row  int
		code string
	}
	var got []found
	for _, issue := range report.Validation.Errors {
		got = append(got, found{issue.Row, issue.Code})
	}
	assert.Equal(t, []found{
		{1, importer.CodeInvalidEnum},
		{2, CodeUnknownEmployee},
		{3, importer.CodeInvalidNumber},
		{4, importer.CodeInvalidNumber},
		{4, CodeUnknownEmployee},
	}, got)

	docs, err := f.store.ListDocuments(context.Background(), tenant, "", DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestImportSchemaAndLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := Actor{UserID: "admin", TenantID: tenant, Admin: true}

	_, err := f.svc.Import(ctx, as("e1"), "kpi.csv", strings.NewReader(importHeader))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	report, err := f.svc.Import(ctx, admin, "kpi.csv", strings.NewReader("employee_code,year\nE001,2025\n"))
	require.ErrorIs(t, err, importer.ErrSchema)
	assert.NotEmpty(t, report.Validation.Errors)

	_, err = f.svc.Import(ctx, admin, "kpi.txt", strings.NewReader(importHeader))
	assert.ErrorIs(t, err, ErrInvalidInput)

	f.svc.MaxImportRows = 1
	_, err = f.svc.Import(ctx, admin, "kpi.csv", strings.NewReader(importHeader+
		"E001,2025,A,1,FINANCIAL,PROJECT,,\nE001,2025,B,1,FINANCIAL,PROJECT,,\n"))
	assert.ErrorIs(t, err, importer.ErrTooManyRows)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeApplied, Outcome(nil))
	assert.Equal(t, OutcomeDenied, Outcome(&PermissionDeniedError{}))
	assert.Equal(t, OutcomeInvalid, Outcome(&workflow.InvalidTransitionError{}))
	assert.Equal(t, OutcomeRejectedWeights, Outcome(&WeightError{Err: errors.New("x")}))
	assert.Equal(t, OutcomeConflict, Outcome(ErrConflict))
	assert.Equal(t, OutcomeNotFound, Outcome(ErrNotFound))
	assert.Equal(t, OutcomeError, Outcome(errors.New("boom")))
}
