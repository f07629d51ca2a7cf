package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/logger"
	"github.com/stroyteh/kanban-service/internal/repository"
	"go.uber.org/zap"
)

// Notifier delivers ERP notifications. idempotencyKey is stable per (rule, event).
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification, idempotencyKey string) error
}

// RuleEngine applies the rules of a board to one card event at a time.
// Each (rule, event) pair runs at most once; the unique execution row is
// claimed before any action runs.
type RuleEngine struct {
	eventRepo *repository.EventRepository
	ruleRepo  *repository.RuleRepository
	cards     *CardService
	notifier  Notifier
	logger    *zap.Logger
}

// NewRuleEngine creates a new rule engine instance
func NewRuleEngine(
	eventRepo *repository.EventRepository,
	ruleRepo *repository.RuleRepository,
	cards *CardService,
	notifier Notifier,
	logger *zap.Logger,
) *RuleEngine {
	return &RuleEngine{
		eventRepo: eventRepo,
		ruleRepo:  ruleRepo,
		cards:     cards,
		notifier:  notifier,
		logger:    logger,
	}
}

// ProcessEvent selects, matches and executes the rules for an event. Action
// failures are recorded on the execution row and do not make ProcessEvent
// fail; only storage errors are returned so the task can be retried.
func (e *RuleEngine) ProcessEvent(ctx context.Context, eventID int64) error {
	log := logger.WithEvent(e.logger, eventID)

	event, err := e.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return translate(err, "event")
	}
	if event.Card == nil {
		return notFound("card")
	}

	rules, err := e.ruleRepo.ListActiveFor(ctx, event.BoardID, event.EventType)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	log.Debug("processing event",
		zap.String("event_type", string(event.EventType)),
		zap.Int("candidate_rules", len(rules)),
	)

	var errs []error
	for i := range rules {
		if err := e.applyRule(ctx, &rules[i], event); err != nil {
			logger.WithRule(e.logger, eventID, rules[i].ID).Error("rule execution bookkeeping failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *RuleEngine) applyRule(ctx context.Context, rule *domain.Rule, event *domain.CardEvent) error {
	log := logger.WithRule(e.logger, event.ID, rule.ID)

	// Rules see only events produced after their current definition.
	if rule.Revision().After(event.CreatedAt) {
		return nil
	}

	// A moving rule never reacts to rule-made events, so rules cannot bounce
	// a card between columns.
	if rule.Moves() && event.FromRule() {
		return nil
	}

	if unknown := domain.UnknownConditionKeys(rule.Conditions); len(unknown) > 0 {
		exec, claimed, err := e.ruleRepo.ClaimExecution(ctx, rule.ID, event.ID, domain.ExecutionSkipped)
		if err != nil || !claimed {
			return err
		}
		msg := "unknown condition keys: " + strings.Join(unknown, ", ")
		log.Warn("rule skipped", zap.Strings("unknown_keys", unknown))
		return e.ruleRepo.FinishExecution(ctx, exec.ID, domain.ExecutionSkipped, msg)
	}

	if !Matches(rule.Conditions, event, event.Card) {
		return nil
	}

	exec, claimed, err := e.ruleRepo.ClaimExecution(ctx, rule.ID, event.ID, domain.ExecutionPending)
	if err != nil {
		return err
	}
	if !claimed {
		log.Debug("rule already executed for event")
		return nil
	}

	actor := domain.RuleActor(rule.ID)
	for i, action := range rule.Actions {
		if err := e.runAction(ctx, rule, event, action, actor); err != nil {
			log.Warn("rule action failed",
				zap.Int("action_index", i),
				zap.String("action_type", string(action.Type)),
				zap.Error(err),
			)
			msg := fmt.Sprintf("action %d (%s): %v", i, action.Type, err)
			return e.ruleRepo.FinishExecution(ctx, exec.ID, domain.ExecutionFailed, msg)
		}
	}

	log.Info("rule executed", zap.Int("actions", len(rule.Actions)))
	return e.ruleRepo.FinishExecution(ctx, exec.ID, domain.ExecutionOK, "")
}

func (e *RuleEngine) runAction(ctx context.Context, rule *domain.Rule, event *domain.CardEvent, action domain.RuleAction, actor domain.Actor) error {
	switch action.Type {
	case domain.ActionNotifyERP:
		key := fmt.Sprintf("rule-%d-event-%d", rule.ID, event.ID)
		return e.notifier.Notify(ctx, domain.NotificationFromPayload(action.Payload), key)
	case domain.ActionSetMeta:
		_, err := e.cards.SetMeta(ctx, event.CardID, action.Payload, actor)
		return err
	case domain.ActionMoveTo:
		key, _ := action.Payload["to_column_key"].(string)
		_, _, err := e.cards.Move(ctx, event.CardID, key, actor)
		return err
	}
	return fmt.Errorf("unsupported action type %q", action.Type)
}

// Matches evaluates a condition object against an event and its card.
// All keys must hold; a missing event field or meta key is a non-match.
func Matches(conditions map[string]interface{}, event *domain.CardEvent, card *domain.Card) bool {
	for key, want := range conditions {
		switch {
		case key == domain.CondToColumnKey || key == domain.CondFromColumnKey:
			got, ok := event.Data[key]
			if !ok || !domain.JSONEqual(got, want) {
				return false
			}
		case key == domain.CondCardType:
			s, ok := want.(string)
			if !ok || card == nil || string(card.Type) != s {
				return false
			}
		case strings.HasPrefix(key, domain.CondMetaPrefix):
			if card == nil {
				return false
			}
			got, ok := card.Meta[strings.TrimPrefix(key, domain.CondMetaPrefix)]
			if !ok || !domain.JSONEqual(got, want) {
				return false
			}
		default:
			return false
		}
	}
	return true
}
