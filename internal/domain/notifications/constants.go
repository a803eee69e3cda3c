package notifications

const (
	TypeReviewPending  = "review_pending"
	TypeReviewApproved = "review_approved"
	TypeReviewRejected = "review_rejected"
	TypeReviewStage    = "review_stage_opened"
)
