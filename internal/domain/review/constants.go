package review

type Kind string

const (
	KindBonus Kind = "bonus"
	KindMerit Kind = "merit"
)

func (k Kind) Valid() bool {
	return k == KindBonus || k == KindMerit
}

const (
	EntityDocument   = "review_document"
	EntityTask       = "review_task"
	EntityLineItem   = "kpi_line_item"
	EntityCompetency = "competency_item"

	AuditDocumentCreate   = "review.document.create"
	AuditDocumentImport   = "review.document.import"
	AuditTaskTransition   = "review.task.transition"
	AuditStageOpen        = "review.stage.open"
	AuditLineItemCreate   = "review.line_item.create"
	AuditLineItemUpdate   = "review.line_item.update"
	AuditLineItemDelete   = "review.line_item.delete"
	AuditAchievementSet   = "review.line_item.achievement"
	AuditCompetencyCreate = "review.competency.create"
	AuditCompetencyUpdate = "review.competency.update"
	AuditCompetencyDelete = "review.competency.delete"
	AuditLevelSet         = "review.competency.level"

	JobTransitionNotice = "review_transition_notice"

	CodeUnknownEmployee      = "unknown_employee"
	CodeMissingApprover      = "missing_approver"
	CodeConflictingAssignees = "conflicting_assignees"
	CodeWeightOverCap        = "weight_over_cap"

	DefaultPeriod = "annual"
)
