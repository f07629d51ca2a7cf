package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// RuleService manages rule definitions. Definitions are checked against the
// closed condition and action schema on every write.
type RuleService struct {
	ruleRepo  *repository.RuleRepository
	boardRepo *repository.BoardRepository
	logger    *zap.Logger
}

// NewRuleService creates a new rule service instance
func NewRuleService(ruleRepo *repository.RuleRepository, boardRepo *repository.BoardRepository, logger *zap.Logger) *RuleService {
	return &RuleService{ruleRepo: ruleRepo, boardRepo: boardRepo, logger: logger}
}

// Create validates and stores a rule
func (s *RuleService) Create(ctx context.Context, req *domain.CreateRuleRequest) (*domain.Rule, error) {
	if _, err := s.boardRepo.GetByID(ctx, req.BoardID); err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewValidationError("board_id", "board does not exist")
		}
		return nil, err
	}

	rule := &domain.Rule{
		BoardID:    req.BoardID,
		Title:      req.Title,
		IsActive:   true,
		EventType:  req.EventType,
		Conditions: datatypes.JSONMap(nonNilMap(req.Conditions)),
		Actions:    datatypes.JSONSlice[domain.RuleAction](req.Actions),
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := s.validate(ctx, rule); err != nil {
		return nil, err
	}

	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}
	s.logger.Info("rule created",
		zap.Int64("rule_id", rule.ID),
		zap.Int64("board_id", rule.BoardID),
		zap.String("event_type", string(rule.EventType)),
	)
	return rule, nil
}

// Get retrieves a rule by id
func (s *RuleService) Get(ctx context.Context, id int64) (*domain.Rule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "rule")
	}
	return rule, nil
}

// List returns rules, optionally of one board
func (s *RuleService) List(ctx context.Context, boardID *int64) ([]domain.Rule, error) {
	return s.ruleRepo.List(ctx, boardID)
}

// Update applies a partial update and revalidates the whole definition
func (s *RuleService) Update(ctx context.Context, id int64, req *domain.UpdateRuleRequest) (*domain.Rule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *rule
	if req.Title != nil {
		rule.Title = *req.Title
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.EventType != nil {
		rule.EventType = *req.EventType
	}
	if req.Conditions != nil {
		rule.Conditions = datatypes.JSONMap(req.Conditions)
	}
	if req.Actions != nil {
		rule.Actions = datatypes.JSONSlice[domain.RuleAction](req.Actions)
	}
	if err := s.validate(ctx, rule); err != nil {
		return nil, err
	}
	if definitionChanged(&before, rule) {
		rule.DefinitionChangedAt = time.Now().UTC()
	}
	if err := s.ruleRepo.Update(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	return rule, nil
}

// Delete removes a rule and its execution history
func (s *RuleService) Delete(ctx context.Context, id int64) error {
	return translate(s.ruleRepo.Delete(ctx, id), "rule")
}

// ListExecutions returns the execution audit of a rule
func (s *RuleService) ListExecutions(ctx context.Context, ruleID int64, page repository.Page) (*domain.PaginatedResponse[domain.RuleExecution], error) {
	if _, err := s.Get(ctx, ruleID); err != nil {
		return nil, err
	}
	execs, total, err := s.ruleRepo.ListExecutions(ctx, ruleID, page)
	if err != nil {
		return nil, err
	}
	return paginated(execs, total, page), nil
}

// validate checks the closed schema and that move_to targets exist on the board
func (s *RuleService) validate(ctx context.Context, rule *domain.Rule) error {
	if err := domain.ValidateRuleDefinition(rule.EventType, rule.Conditions, rule.Actions); err != nil {
		return err
	}
	verr := &domain.ValidationError{}
	for i, action := range rule.Actions {
		if action.Type != domain.ActionMoveTo {
			continue
		}
		key, _ := action.Payload["to_column_key"].(string)
		if _, err := s.boardRepo.GetColumnByKey(ctx, nil, rule.BoardID, key); err != nil {
			if !repository.IsNotFound(err) {
				return err
			}
			verr.Add(fmt.Sprintf("actions[%d]", i), fmt.Sprintf("column %q does not exist on this board", key))
		}
	}
	return verr.OrNil()
}

func nonNilMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

// definitionChanged reports whether an update changes which events fire the
// rule or what it does. A title edit or deactivation does not.
func definitionChanged(before, after *domain.Rule) bool {
	return before.EventType != after.EventType ||
		!domain.JSONEqual(before.Conditions, after.Conditions) ||
		!domain.JSONEqual(before.Actions, after.Actions) ||
		(!before.IsActive && after.IsActive)
}
