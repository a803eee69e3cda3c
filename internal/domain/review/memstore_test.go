package review

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/workflow"
)

// memState is the in-memory stand-in for the review tables.
type memState struct {
	seq          int
	docs         map[string]Document
	lineItems    map[string]LineItem
	competencies map[string]CompetencyItem
	tasks        []Task
	employees    map[string]Employee
	audits       []audit.Entry
}

func (st *memState) clone() *memState {
	return &memState{
		seq:          st.seq,
		docs:         maps.Clone(st.docs),
		lineItems:    maps.Clone(st.lineItems),
		competencies: maps.Clone(st.competencies),
		tasks:        slices.Clone(st.tasks),
		employees:    maps.Clone(st.employees),
		audits:       slices.Clone(st.audits),
	}
}

func (st *memState) nextID(prefix string) string {
	st.seq++
	return fmt.Sprintf("%s-%d", prefix, st.seq)
}

func (st *memState) document(tenantID, id string) (Document, error) {
	doc, ok := st.docs[id]
	if !ok || doc.TenantID != tenantID {
		return Document{}, ErrNotFound
	}
	doc.LineItems = nil
	doc.Competencies = nil
	for _, li := range st.lineItems {
		if li.DocumentID == id {
			doc.LineItems = append(doc.LineItems, li)
		}
	}
	for _, c := range st.competencies {
		if c.DocumentID == id {
			doc.Competencies = append(doc.Competencies, c)
		}
	}
	sort.Slice(doc.LineItems, func(i, j int) bool { return doc.LineItems[i].Position < doc.LineItems[j].Position })
	sort.Slice(doc.Competencies, func(i, j int) bool { return doc.Competencies[i].Position < doc.Competencies[j].Position })
	return doc, nil
}

func (st *memState) taskIndex(tenantID, id string) int {
	for i, t := range st.tasks {
		if t.ID == id && t.TenantID == tenantID {
			return i
		}
	}
	return -1
}

func (st *memState) tasksOf(tenantID, documentID string) []Task {
	var out []Task
	for _, t := range st.tasks {
		if t.DocumentID == documentID && t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	return out
}

func (st *memState) current(tenantID, documentID string) (Task, error) {
	tasks := st.tasksOf(tenantID, documentID)
	if len(tasks) == 0 {
		return Task{}, ErrNotFound
	}
	return tasks[len(tasks)-1], nil
}

func (st *memState) rank(employeeID string) (string, error) {
	e, ok := st.employees[employeeID]
	if !ok {
		return "", ErrNotFound
	}
	return e.Rank, nil
}

type memStore struct {
	mu    sync.Mutex
	state *memState
}

func newMemStore(employees ...Employee) *memStore {
	st := &memState{
		docs:         map[string]Document{},
		lineItems:    map[string]LineItem{},
		competencies: map[string]CompetencyItem{},
		employees:    map[string]Employee{},
	}
	for _, e := range employees {
		st.employees[e.ID] = e
	}
	return &memStore{state: st}
}

// WithTx runs fn on a copy of the state and keeps the copy only when fn
// succeeds.
func (m *memStore) WithTx(ctx context.Context, fn func(tx TxStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft := m.state.clone()
	if err := fn(&memTx{st: draft}); err != nil {
		return err
	}
	m.state = draft
	return nil
}

func (m *memStore) read() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *memStore) GetDocument(ctx context.Context, tenantID, documentID string) (Document, error) {
	return m.read().document(tenantID, documentID)
}

func (m *memStore) ListDocuments(ctx context.Context, tenantID, employeeID string, filter DocumentFilter) ([]Document, error) {
	st := m.read()
	out := []Document{}
	for _, d := range st.docs {
		if d.TenantID != tenantID {
			continue
		}
		if employeeID != "" && d.OwnerID != employeeID && d.CheckerID != employeeID && d.ApproverID != employeeID {
			continue
		}
		if (filter.Year != 0 && d.Year != filter.Year) || (filter.Kind != "" && d.Kind != filter.Kind) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListTasks(ctx context.Context, tenantID, documentID string) ([]Task, error) {
	return m.read().tasksOf(tenantID, documentID), nil
}

func (m *memStore) GetTask(ctx context.Context, tenantID, taskID string) (Task, error) {
	st := m.read()
	i := st.taskIndex(tenantID, taskID)
	if i < 0 {
		return Task{}, ErrNotFound
	}
	return st.tasks[i], nil
}

func (m *memStore) CurrentTask(ctx context.Context, tenantID, documentID string) (Task, error) {
	return m.read().current(tenantID, documentID)
}

func (m *memStore) ListInbox(ctx context.Context, tenantID, employeeID string, status workflow.Status) ([]InboxItem, error) {
	st := m.read()
	out := []InboxItem{}
	for id, d := range st.docs {
		if d.TenantID != tenantID {
			continue
		}
		t, err := st.current(tenantID, id)
		if err != nil {
			continue
		}
		if t.PreparedBy != employeeID && t.CheckedBy != employeeID && t.ApprovedBy != employeeID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, InboxItem{Task: t, Kind: d.Kind, Year: d.Year, Title: d.Title})
	}
	return out, nil
}

func (m *memStore) EmployeeRank(ctx context.Context, tenantID, employeeID string) (string, error) {
	return m.read().rank(employeeID)
}

func (m *memStore) EmployeesByCode(ctx context.Context, tenantID string, codes []string) (map[string]Employee, error) {
	st := m.read()
	out := map[string]Employee{}
	for _, e := range st.employees {
		if slices.Contains(codes, e.Code) {
			out[e.Code] = e
		}
	}
	return out, nil
}

func (m *memStore) EmployeeUserID(ctx context.Context, tenantID, employeeID string) (string, error) {
	e, ok := m.read().employees[employeeID]
	if !ok || e.UserID == "" {
		return "", ErrNotFound
	}
	return e.UserID, nil
}

func (m *memStore) audits() []audit.Entry {
	return m.read().audits
}

type memTx struct {
	st *memState
}

func (t *memTx) LockTask(ctx context.Context, tenantID, taskID string) (Task, error) {
	i := t.st.taskIndex(tenantID, taskID)
	if i < 0 {
		return Task{}, ErrNotFound
	}
	return t.st.tasks[i], nil
}

func (t *memTx) LockCurrentTask(ctx context.Context, tenantID, documentID string) (Task, error) {
	return t.st.current(tenantID, documentID)
}

func (t *memTx) GetDocument(ctx context.Context, tenantID, documentID string) (Document, error) {
	return t.st.document(tenantID, documentID)
}

func (t *memTx) EmployeeRank(ctx context.Context, tenantID, employeeID string) (string, error) {
	return t.st.rank(employeeID)
}

func (t *memTx) CreateDocument(ctx context.Context, doc Document) (string, error) {
	for _, d := range t.st.docs {
		if d.TenantID == doc.TenantID && d.OwnerID == doc.OwnerID && d.Kind == doc.Kind && d.Year == doc.Year && d.Period == doc.Period {
			return "", ErrDuplicateDocument
		}
	}
	doc.ID = t.st.nextID("doc")
	doc.CreatedAt = time.Now().UTC()
	doc.UpdatedAt = doc.CreatedAt
	t.st.docs[doc.ID] = doc
	return doc.ID, nil
}

func (t *memTx) CreateTask(ctx context.Context, task Task) (string, error) {
	for _, existing := range t.st.tasks {
		if existing.DocumentID == task.DocumentID && existing.Stage == task.Stage {
			return "", ErrConflict
		}
	}
	task.ID = t.st.nextID("task")
	task.CreatedAt = time.Now().UTC()
	task.UpdatedAt = task.CreatedAt
	t.st.tasks = append(t.st.tasks, task)
	return task.ID, nil
}

func (t *memTx) UpdateTaskStatus(ctx context.Context, tenantID, taskID string, from, to workflow.Status) error {
	i := t.st.taskIndex(tenantID, taskID)
	if i < 0 || t.st.tasks[i].Status != from {
		return ErrConflict
	}
	t.st.tasks[i].Status = to
	return nil
}

func (t *memTx) InsertLineItem(ctx context.Context, tenantID string, item LineItem) (string, error) {
	item.ID = t.st.nextID("li")
	t.st.lineItems[item.ID] = item
	return item.ID, nil
}

func (t *memTx) UpdateLineItem(ctx context.Context, tenantID string, item LineItem) error {
	if _, ok := t.st.lineItems[item.ID]; !ok {
		return ErrNotFound
	}
	t.st.lineItems[item.ID] = item
	return nil
}

func (t *memTx) DeleteLineItem(ctx context.Context, tenantID, documentID, itemID string) error {
	if _, ok := t.st.lineItems[itemID]; !ok {
		return ErrNotFound
	}
	delete(t.st.lineItems, itemID)
	return nil
}

func (t *memTx) InsertCompetency(ctx context.Context, tenantID string, item CompetencyItem) (string, error) {
	item.ID = t.st.nextID("comp")
	t.st.competencies[item.ID] = item
	return item.ID, nil
}

func (t *memTx) UpdateCompetency(ctx context.Context, tenantID string, item CompetencyItem) error {
	if _, ok := t.st.competencies[item.ID]; !ok {
		return ErrNotFound
	}
	t.st.competencies[item.ID] = item
	return nil
}

func (t *memTx) DeleteCompetency(ctx context.Context, tenantID, documentID, itemID string) error {
	if _, ok := t.st.competencies[itemID]; !ok {
		return ErrNotFound
	}
	delete(t.st.competencies, itemID)
	return nil
}

func (t *memTx) RecordAudit(ctx context.Context, tenantID string, entry audit.Entry) error {
	t.st.audits = append(t.st.audits, entry)
	return nil
}
