package review

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"appraisal/internal/domain/access"
	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/fixedpoint"
	"appraisal/internal/domain/importer"
	"appraisal/internal/domain/scoring"
)

type editFunc func(tx TxStore, doc Document, role access.Role) error

// editDocument runs fn against the document with its current task locked.
// The caller must hold write at the current status; preparerOnly further
// limits the change to the document owner.
func (s *Service) editDocument(ctx context.Context, actor Actor, documentID string, preparerOnly bool, fn editFunc) error {
	return s.store.WithTx(ctx, func(tx TxStore) error {
		task, err := tx.LockCurrentTask(ctx, actor.TenantID, documentID)
		if err != nil {
			return err
		}
		role := access.ResolveRole(task.accessContext(actor.EmployeeID))
		if !access.CanPerform(role, access.ActionWrite, task.Status) || (preparerOnly && role != access.RolePreparer) {
			return &PermissionDeniedError{Role: role, Action: access.ActionWrite, Status: task.Status}
		}
		doc, err := tx.GetDocument(ctx, actor.TenantID, documentID)
		if err != nil {
			return err
		}
		return fn(tx, doc, role)
	})
}

func (s *Service) AddLineItem(ctx context.Context, actor Actor, documentID string, item LineItem) (LineItem, error) {
	normalizeLineItem(&item)
	if err := validateLineItem(item); err != nil {
		return LineItem{}, err
	}
	err := s.editDocument(ctx, actor, documentID, true, func(tx TxStore, doc Document, _ access.Role) error {
		if doc.Kind != KindBonus {
			return &InputError{Field: "kind", Reason: "line items belong to bonus documents"}
		}
		item.DocumentID = doc.ID
		item.Achievement = scoring.RoleLevels{}
		if item.Position <= 0 {
			item.Position = len(doc.LineItems) + 1
		}
		id, err := tx.InsertLineItem(ctx, actor.TenantID, item)
		if err != nil {
			return err
		}
		item.ID = id
		return tx.RecordAudit(ctx, actor.TenantID, itemAudit(actor, AuditLineItemCreate, EntityLineItem, id, nil, item))
	})
	if err != nil {
		return LineItem{}, err
	}
	return item, nil
}

func (s *Service) UpdateLineItem(ctx context.Context, actor Actor, documentID string, item LineItem) (LineItem, error) {
	normalizeLineItem(&item)
	if err := validateLineItem(item); err != nil {
		return LineItem{}, err
	}
	err := s.editDocument(ctx, actor, documentID, true, func(tx TxStore, doc Document, _ access.Role) error {
		before, err := findLineItem(doc, item.ID)
		if err != nil {
			return err
		}
		item.DocumentID = doc.ID
		item.Achievement = before.Achievement
		if item.Position <= 0 {
			item.Position = before.Position
		}
		if err := tx.UpdateLineItem(ctx, actor.TenantID, item); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, actor.TenantID, itemAudit(actor, AuditLineItemUpdate, EntityLineItem, item.ID, before, item))
	})
	if err != nil {
		return LineItem{}, err
	}
	return item, nil
}

func (s *Service) DeleteLineItem(ctx context.Context, actor Actor, documentID, itemID string) error {
	return s.editDocument(ctx, actor, documentID, true, func(tx TxStore, doc Document, _ access.Role) error {
		before, err := findLineItem(doc, itemID)
		if err != nil {
			return err
		}
		if err := tx.DeleteLineItem(ctx, actor.TenantID, doc.ID, itemID); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, actor.TenantID, itemAudit(actor, AuditLineItemDelete, EntityLineItem, itemID, before, nil))
	})
}

// RecordAchievement stores the tier the caller awards a line item, in the
// column of the caller's role.
func (s *Service) RecordAchievement(ctx context.Context, actor Actor, documentID, itemID string, tier int) (LineItem, error) {
	if !scoring.ValidTier(tier) {
		return LineItem{}, &InputError{Field: "tier", Reason: scoring.ErrInvalidTier.Error()}
	}
	var item LineItem
	err := s.editDocument(ctx, actor, documentID, false, func(tx TxStore, doc Document, role access.Role) error {
		before, err := findLineItem(doc, itemID)
		if err != nil {
			return err
		}
		item = before
		setForRole(&item.Achievement, role, tier)
		if err := tx.UpdateLineItem(ctx, actor.TenantID, item); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, actor.TenantID, itemAudit(actor, AuditAchievementSet, EntityLineItem, itemID, before.Achievement, item.Achievement))
	})
	if err != nil {
		return LineItem{}, err
	}
	return item, nil
}

func (s *Service) AddCompetency(ctx context.Context, actor Actor, documentID string, item CompetencyItem) (CompetencyItem, error) {
	if err := validateCompetency(item); err != nil {
		return CompetencyItem{}, err
	}
	err := s.editDocument(ctx, actor, documentID, true, func(tx TxStore, doc Document, _ access.Role) error {
		if doc.Kind != KindMerit {
			return &InputError{Field: "kind", Reason: "competencies belong to merit documents"}
		}
		item.DocumentID = doc.ID
		item.Levels = scoring.RoleLevels{}
		if item.Position <= 0 {
			item.Position = len(doc.Competencies) + 1
		}
		id, err := tx.InsertCompetency(ctx, actor.TenantID, item)
		if err != nil {
			return err
		}
		item.ID = id
		return tx.RecordAudit(ctx, actor.TenantID, itemAudit(actor, AuditCompetencyCreate, EntityCompetency, id, nil, item))
	})
	if err != nil {
		return CompetencyItem{}, err
	}
	return item, nil
}

func (s *Service) UpdateCompetency(ctx context.Context, actor Actor, documentID string, item CompetencyItem) (CompetencyItem, error) {
	if err := validateCompetency(item); err != nil {
		return CompetencyItem{}, err
	}
	err := s.editDocument(ctx, actor, documentID, true, func(tx TxStore, doc Document, _ access.Role) error {
		before, err := findCompetency(doc, item.ID)
		if err != nil {
			return err
		}
		item.DocumentID = doc.ID
		item.Levels = before.Levels
		if item.Position <= 0 {
			item.Position = before.Position
		}
		if err := tx.UpdateCompetency(ctx, actor.TenantID, item); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, actor.TenantID, itemAudit(actor, AuditCompetencyUpdate, EntityCompetency, item.ID, before, item))
	})
	if err != nil {
		return CompetencyItem{}, err
	}
	return item, nil
}

func (s *Service) DeleteCompetency(ctx context.Context, actor Actor, documentID, itemID string) error {
	return s.editDocument(ctx, actor, documentID, true, func(tx TxStore, doc Document, _ access.Role) error {
		before, err := findCompetency(doc, itemID)
		if err != nil {
			return err
		}
		if err := tx.DeleteCompetency(ctx, actor.TenantID, doc.ID, itemID); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, actor.TenantID, itemAudit(actor, AuditCompetencyDelete, EntityCompetency, itemID, before, nil))
	})
}

// RecordLevel stores the proficiency level the caller assigns a competency,
// in the column of the caller's role.
func (s *Service) RecordLevel(ctx context.Context, actor Actor, documentID, itemID string, level int) (CompetencyItem, error) {
	if level < s.policy.MinLevel || level > s.policy.MaxLevel {
		return CompetencyItem{}, &InputError{Field: "level", Reason: fmt.Sprintf("must be between %d and %d", s.policy.MinLevel, s.policy.MaxLevel)}
	}
	var item CompetencyItem
	err := s.editDocument(ctx, actor, documentID, false, func(tx TxStore, doc Document, role access.Role) error {
		before, err := findCompetency(doc, itemID)
		if err != nil {
			return err
		}
		item = before
		setForRole(&item.Levels, role, level)
		if err := tx.UpdateCompetency(ctx, actor.TenantID, item); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, actor.TenantID, itemAudit(actor, AuditLevelSet, EntityCompetency, itemID, before.Levels, item.Levels))
	})
	if err != nil {
		return CompetencyItem{}, err
	}
	return item, nil
}

func setForRole(levels *scoring.RoleLevels, role access.Role, value int) {
	switch role {
	case access.RolePreparer:
		levels.Owner = value
	case access.RoleChecker:
		levels.Checker = value
	case access.RoleApprover:
		levels.Approver = value
	}
}

func findLineItem(doc Document, itemID string) (LineItem, error) {
	for _, li := range doc.LineItems {
		if li.ID == itemID {
			return li, nil
		}
	}
	return LineItem{}, ErrNotFound
}

func findCompetency(doc Document, itemID string) (CompetencyItem, error) {
	for _, c := range doc.Competencies {
		if c.ID == itemID {
			return c, nil
		}
	}
	return CompetencyItem{}, ErrNotFound
}

func normalizeLineItem(item *LineItem) {
	item.Name = strings.TrimSpace(item.Name)
	item.Category = strings.ToUpper(strings.TrimSpace(item.Category))
	item.Type = strings.ToUpper(strings.TrimSpace(item.Type))
}

func validateLineItem(item LineItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return &InputError{Field: "name", Reason: "required"}
	}
	if err := weightInputError(item.Weight); err != nil {
		return err
	}
	if !slices.Contains(importer.BonusCategories, item.Category) {
		return &InputError{Field: "category", Reason: "must be one of " + strings.Join(importer.BonusCategories, ", ")}
	}
	if !slices.Contains(importer.BonusTypes, item.Type) {
		return &InputError{Field: "type", Reason: "must be one of " + strings.Join(importer.BonusTypes, ", ")}
	}
	return nil
}

func validateCompetency(item CompetencyItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return &InputError{Field: "name", Reason: "required"}
	}
	if err := weightInputError(item.Weight); err != nil {
		return err
	}
	return nil
}

func weightInputError(w fixedpoint.Weight) error {
	switch {
	case w < 0:
		return &InputError{Field: "weight", Reason: scoring.ErrNegativeWeight.Error()}
	case w > fixedpoint.MaxWeight:
		return &InputError{Field: "weight", Reason: scoring.ErrWeightTooLarge.Error()}
	}
	return nil
}

func itemAudit(actor Actor, action, entityType, entityID string, before, after any) audit.Entry {
	return audit.Entry{
		ActorID:    actor.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  actor.RequestID,
		IP:         actor.IP,
		Before:     before,
		After:      after,
	}
}
