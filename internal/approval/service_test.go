package approval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeGatewayRepo records transitions against an in-memory entity table.
type fakeGatewayRepo struct {
	// rows per table: id -> (approval_status, status)
	rows map[string]map[int64][2]string

	applied []appliedTransition
}

type appliedTransition struct {
	table  string
	id     int64
	action Action
	status string
}

func newFakeGatewayRepo() *fakeGatewayRepo {
	return &fakeGatewayRepo{rows: map[string]map[int64][2]string{}}
}

func (f *fakeGatewayRepo) seed(table string, id int64) {
	if f.rows[table] == nil {
		f.rows[table] = map[int64][2]string{}
	}
	f.rows[table][id] = [2]string{"PENDING", ""}
}

func (f *fakeGatewayRepo) Apply(ctx context.Context, rule Rule, id int64, action Action, status string) error {
	table, ok := f.rows[rule.Table]
	if !ok {
		return ErrNotFound
	}
	if _, ok := table[id]; !ok {
		return ErrNotFound
	}
	table[id] = [2]string{string(action), status}
	f.applied = append(f.applied, appliedTransition{table: rule.Table, id: id, action: action, status: status})
	return nil
}

func (f *fakeGatewayRepo) PendingCount(ctx context.Context, rule Rule) (int64, error) {
	var count int64
	for _, row := range f.rows[rule.Table] {
		if row[0] == "PENDING" {
			count++
		}
	}
	return count, nil
}

func TestTransitionWritesBothFields(t *testing.T) {
	repo := newFakeGatewayRepo()
	repo.seed("orders", 7)
	svc := NewService(DefaultRules(), repo, nil, nil)

	status, err := svc.Transition(context.Background(), KindOrder, 7, ActionApproved, 1, "")
	require.NoError(t, err)

	require.Equal(t, "ORDER_APPROVED", status)
	require.Equal(t, [2]string{"APPROVED", "ORDER_APPROVED"}, repo.rows["orders"][7])
}

func TestTransitionStatusComesFromTheRuleTable(t *testing.T) {
	repo := newFakeGatewayRepo()
	repo.seed("purchase_orders", 3)
	repo.seed("inventory_lots", 4)
	repo.seed("orders", 5)
	svc := NewService(DefaultRules(), repo, nil, nil)

	cases := []struct {
		kind   Kind
		id     int64
		action Action
		want   string
	}{
		{KindPurchaseOrder, 3, ActionPending, "PO_RAISED"},
		{KindPurchaseOrder, 3, ActionApproved, "PO_APPROVED"},
		{KindPurchaseOrder, 3, ActionCancelled, "PO_REJECTED"},
		{KindInventory, 4, ActionPending, "INWARD_REQUESTED"},
		{KindInventory, 4, ActionApproved, "INWARD_APPROVED"},
		{KindInventory, 4, ActionCancelled, "INWARD_REJECTED"},
		{KindOrder, 5, ActionPending, "ORDER_RAISED"},
		{KindOrder, 5, ActionApproved, "ORDER_APPROVED"},
		{KindOrder, 5, ActionCancelled, "ORDER_REJECTED"},
	}
	for _, tc := range cases {
		status, err := svc.Transition(context.Background(), tc.kind, tc.id, tc.action, 1, "")
		require.NoError(t, err)
		require.Equal(t, tc.want, status)
	}
}

func TestTransitionUnknownKind(t *testing.T) {
	svc := NewService(DefaultRules(), newFakeGatewayRepo(), nil, nil)
	_, err := svc.Transition(context.Background(), Kind("invoice"), 1, ActionApproved, 1, "")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestTransitionUnknownAction(t *testing.T) {
	svc := NewService(DefaultRules(), newFakeGatewayRepo(), nil, nil)
	_, err := svc.Transition(context.Background(), KindOrder, 1, Action("ESCALATED"), 1, "")
	require.ErrorIs(t, err, ErrUnknownAction)
}

func TestTransitionMissingEntity(t *testing.T) {
	repo := newFakeGatewayRepo()
	repo.seed("orders", 7)
	svc := NewService(DefaultRules(), repo, nil, nil)

	_, err := svc.Transition(context.Background(), KindOrder, 8, ActionApproved, 1, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewKindNeedsOnlyARule(t *testing.T) {
	rules := DefaultRules()
	rules[Kind("transfer")] = Rule{
		Table:           "transfers",
		UpdatedAtColumn: "updated_at",
		StatusFor: map[Action]string{
			ActionPending:   "TRANSFER_REQUESTED",
			ActionApproved:  "TRANSFER_APPROVED",
			ActionCancelled: "TRANSFER_REJECTED",
		},
	}
	repo := newFakeGatewayRepo()
	repo.seed("transfers", 1)
	svc := NewService(rules, repo, nil, nil)

	status, err := svc.Transition(context.Background(), Kind("transfer"), 1, ActionCancelled, 1, "")
	require.NoError(t, err)
	require.Equal(t, "TRANSFER_REJECTED", status)
}

func TestPendingCounts(t *testing.T) {
	repo := newFakeGatewayRepo()
	repo.seed("orders", 1)
	repo.seed("orders", 2)
	repo.seed("purchase_orders", 3)
	repo.rows["inventory_lots"] = map[int64][2]string{}
	svc := NewService(DefaultRules(), repo, nil, nil)

	_, err := svc.Transition(context.Background(), KindOrder, 1, ActionApproved, 1, "")
	require.NoError(t, err)

	counts, err := svc.PendingCounts(context.Background())
	require.NoError(t, err)

	byKind := map[Kind]int64{}
	for _, c := range counts {
		byKind[c.Kind] = c.Count
	}
	require.EqualValues(t, 1, byKind[KindOrder])
	require.EqualValues(t, 1, byKind[KindPurchaseOrder])
	require.EqualValues(t, 0, byKind[KindInventory])
}
