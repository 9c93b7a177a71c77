package approval

import (
	"context"
	"strconv"

	"github.com/wareflow/wareflow/internal/shared"
)

// RepositoryPort abstracts the transition writer.
type RepositoryPort interface {
	Apply(ctx context.Context, rule Rule, id int64, action Action, status string) error
	PendingCount(ctx context.Context, rule Rule) (int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the approval gateway. All control flow is table lookups; the
// rule decides which table gets written and what status lands next to the
// gate value.
type Service struct {
	rules   Ruleset
	repo    RepositoryPort
	history *shared.ApprovalHistory
	audit   AuditPort
}

// NewService builds Service. history and audit may be nil.
func NewService(rules Ruleset, repo RepositoryPort, history *shared.ApprovalHistory, audit AuditPort) *Service {
	return &Service{rules: rules, repo: repo, history: history, audit: audit}
}

// Transition applies action to the entity (kind, id). Both approval_status
// and status change in one write; 0 matched rows means the entity is gone.
func (s *Service) Transition(ctx context.Context, kind Kind, id int64, action Action, actorID int64, note string) (string, error) {
	rule, ok := s.rules[kind]
	if !ok {
		return "", ErrUnknownKind
	}
	status, ok := rule.StatusFor[action]
	if !ok {
		return "", ErrUnknownAction
	}
	if err := s.repo.Apply(ctx, rule, id, action, status); err != nil {
		return "", err
	}
	s.recordHistory(ctx, kind, id, action, actorID, note)
	s.recordAudit(ctx, actorID, kind, id, action, status)
	return status, nil
}

// PendingCounts returns the approval queue sizes per kind.
func (s *Service) PendingCounts(ctx context.Context) ([]PendingCount, error) {
	out := make([]PendingCount, 0, len(s.rules))
	for _, kind := range []Kind{KindPurchaseOrder, KindInventory, KindOrder} {
		rule, ok := s.rules[kind]
		if !ok {
			continue
		}
		count, err := s.repo.PendingCount(ctx, rule)
		if err != nil {
			return nil, err
		}
		out = append(out, PendingCount{Kind: kind, Count: count})
	}
	return out, nil
}

// History returns the decision stream for one entity.
func (s *Service) History(ctx context.Context, kind Kind, id int64) ([]shared.ApprovalEntry, error) {
	if _, ok := s.rules[kind]; !ok {
		return nil, ErrUnknownKind
	}
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(ctx, string(kind), shared.ApprovalRef(string(kind), id))
}

func (s *Service) recordHistory(ctx context.Context, kind Kind, id int64, action Action, actorID int64, note string) {
	if s.history == nil {
		return
	}
	ref := shared.ApprovalRef(string(kind), id)
	_ = s.history.EnsureSubmit(ctx, string(kind), ref, actorID, "")
	entry := shared.ApprovalEntry{
		Kind:    string(kind),
		RefID:   ref,
		ActorID: actorID,
		Note:    note,
	}
	switch action {
	case ActionApproved:
		entry.Action = shared.ApprovalApprove
	case ActionCancelled:
		entry.Action = shared.ApprovalCancel
	default:
		entry.Action = shared.ApprovalReset
	}
	_ = s.history.Record(ctx, entry)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, kind Kind, id int64, action Action, status string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "approval." + string(action),
		Entity:   string(kind),
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"status": status},
	})
}
