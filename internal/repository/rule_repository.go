package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/stroyteh/kanban-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RuleRepository handles rules and their execution records
type RuleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new rule repository instance
func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Create inserts a rule
func (r *RuleRepository) Create(ctx context.Context, rule *domain.Rule) error {
	if rule.DefinitionChangedAt.IsZero() {
		rule.DefinitionChangedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(rule).Error
}

// GetByID retrieves a rule by id
func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*domain.Rule, error) {
	var rule domain.Rule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// List returns rules, optionally restricted to a board, in id order
func (r *RuleRepository) List(ctx context.Context, boardID *int64) ([]domain.Rule, error) {
	query := r.db.WithContext(ctx).Model(&domain.Rule{})
	if boardID != nil {
		query = query.Where("board_id = ?", *boardID)
	}
	var rules []domain.Rule
	err := query.Order("id ASC").Find(&rules).Error
	return rules, err
}

// Update persists all mutable rule fields
func (r *RuleRepository) Update(ctx context.Context, rule *domain.Rule) error {
	return r.db.WithContext(ctx).
		Model(rule).
		Select("title", "is_active", "event_type", "conditions", "actions", "definition_changed_at", "updated_at").
		Updates(rule).Error
}

// Delete removes a rule; its executions go with it
func (r *RuleRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rule_id = ?", id).Delete(&domain.RuleExecution{}).Error; err != nil {
			return fmt.Errorf("failed to delete rule executions: %w", err)
		}
		result := tx.Delete(&domain.Rule{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListActiveFor selects the active rules of a board subscribed to eventType,
// in ascending id order
func (r *RuleRepository) ListActiveFor(ctx context.Context, boardID int64, eventType domain.EventType) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := r.db.WithContext(ctx).
		Where("board_id = ? AND event_type = ? AND is_active = ?", boardID, eventType, true).
		Order("id ASC").
		Find(&rules).Error
	return rules, err
}

// ClaimExecution inserts the (rule, event) execution row. It returns nil and
// false when another delivery already claimed the pair.
func (r *RuleRepository) ClaimExecution(ctx context.Context, ruleID, eventID int64, status domain.ExecutionStatus) (*domain.RuleExecution, bool, error) {
	exec := &domain.RuleExecution{
		RuleID:    ruleID,
		EventID:   eventID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(exec)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to claim rule execution: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, false, nil
	}
	return exec, true, nil
}

// FinishExecution records the outcome of a claimed execution
func (r *RuleRepository) FinishExecution(ctx context.Context, id int64, status domain.ExecutionStatus, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&domain.RuleExecution{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"error":       errMsg,
			"finished_at": time.Now().UTC(),
		}).Error
}

// ListExecutions returns executions of a rule, newest first
func (r *RuleRepository) ListExecutions(ctx context.Context, ruleID int64, page Page) ([]domain.RuleExecution, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.RuleExecution{}).Where("rule_id = ?", ruleID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var execs []domain.RuleExecution
	err := page.Apply(query).Order("id DESC").Find(&execs).Error
	return execs, total, err
}

// ListEventExecutions returns every execution recorded for an event
func (r *RuleRepository) ListEventExecutions(ctx context.Context, eventID int64) ([]domain.RuleExecution, error) {
	var execs []domain.RuleExecution
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Order("rule_id ASC").Find(&execs).Error
	return execs, err
}
