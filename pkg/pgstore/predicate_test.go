package pgstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aw-studio/go-states/pkg/fsm"
	"github.com/aw-studio/go-states/pkg/pgstore"
)

const dimPayment = "payment_state"

const (
	Pending fsm.State = "pending"
	Paid    fsm.State = "paid"
	Failed  fsm.State = "failed"
)

func paymentDef(t *testing.T) *fsm.Definition {
	t.Helper()
	return fsm.MustNew(Pending,
		fsm.WithStates(Paid, Failed),
		fsm.WithTransition("pay", Pending, Paid),
		fsm.WithTransition("fail", Pending, Failed),
	)
}

var ordersOwner = pgstore.Owner{Type: "order", IDExpr: "orders.id::text"}

// guardTail closes a latest-entry check: no higher-ID entry may exist for the
// same scope.
const guardTail = " AND NOT EXISTS (SELECT 1 FROM state_transitions AS sln WHERE sln.owner_type = sl.owner_type AND sln.owner_id = sl.owner_id AND sln.dimension = sl.dimension AND sln.id > sl.id))"

func scopeSQL(typeArg, dimArg string) string {
	return "EXISTS (SELECT 1 FROM state_transitions AS sl WHERE sl.owner_type = " + typeArg +
		" AND sl.owner_id = orders.id::text AND sl.dimension = " + dimArg + ")"
}

func latestSQL(typeArg, dimArg, stateCond string) string {
	return "EXISTS (SELECT 1 FROM state_transitions AS sl WHERE sl.owner_type = " + typeArg +
		" AND sl.owner_id = orders.id::text AND sl.dimension = " + dimArg +
		" AND sl.to_state " + stateCond + guardTail
}

func TestCompileCurrentIs(t *testing.T) {
	def := paymentDef(t)

	t.Run("non-initial checks the latest entry only", func(t *testing.T) {
		sql, args, err := pgstore.Compile(pgstore.CurrentIs(dimPayment, def, Paid), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, latestSQL("$1", "$2", "= $3"), sql)
		require.Equal(t, []any{"order", dimPayment, "paid"}, args)
	})

	t.Run("initial admits scopes without entries", func(t *testing.T) {
		sql, args, err := pgstore.Compile(pgstore.CurrentIs(dimPayment, def, Pending), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, "(NOT "+scopeSQL("$1", "$2")+" OR "+latestSQL("$3", "$4", "= $5")+")", sql)
		require.Equal(t, []any{"order", dimPayment, "order", dimPayment, "pending"}, args)
	})
}

func TestCompileCurrentNot(t *testing.T) {
	def := paymentDef(t)

	t.Run("non-initial admits scopes without entries", func(t *testing.T) {
		sql, args, err := pgstore.Compile(pgstore.CurrentNot(dimPayment, def, Paid), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, "(NOT "+scopeSQL("$1", "$2")+" OR "+latestSQL("$3", "$4", "<> $5")+")", sql)
		require.Equal(t, []any{"order", dimPayment, "order", dimPayment, "paid"}, args)
	})

	t.Run("initial requires an entry that left it", func(t *testing.T) {
		sql, args, err := pgstore.Compile(pgstore.CurrentNot(dimPayment, def, Pending), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, latestSQL("$1", "$2", "<> $3"), sql)
		require.Equal(t, []any{"order", dimPayment, "pending"}, args)
	})
}

func TestCompileCurrentIn(t *testing.T) {
	def := paymentDef(t)

	t.Run("set containing the initial state", func(t *testing.T) {
		sql, args, err := pgstore.Compile(pgstore.CurrentIn(dimPayment, def, Pending, Paid), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, "(NOT "+scopeSQL("$1", "$2")+" OR "+latestSQL("$3", "$4", "= ANY($5)")+")", sql)
		require.Equal(t, []any{"order", dimPayment, "order", dimPayment, []string{"pending", "paid"}}, args)
	})

	t.Run("set without the initial state", func(t *testing.T) {
		sql, args, err := pgstore.Compile(pgstore.CurrentIn(dimPayment, def, Paid, Failed), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, latestSQL("$1", "$2", "= ANY($3)"), sql)
		require.Equal(t, []any{"order", dimPayment, []string{"paid", "failed"}}, args)
	})

	t.Run("not-in is the complement", func(t *testing.T) {
		sql, args, err := pgstore.Compile(pgstore.CurrentNotIn(dimPayment, def, Paid, Failed), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, "(NOT "+scopeSQL("$1", "$2")+" OR "+latestSQL("$3", "$4", "<> ALL($5)")+")", sql)
		require.Equal(t, []any{"order", dimPayment, "order", dimPayment, []string{"paid", "failed"}}, args)
	})
}

func TestCompileEver(t *testing.T) {
	def := paymentDef(t)

	t.Run("initial state is vacuously true", func(t *testing.T) {
		sql, args, err := pgstore.Compile(pgstore.Ever(dimPayment, def, Pending), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, "TRUE", sql)
		require.Empty(t, args)
	})

	t.Run("non-initial ignores recency", func(t *testing.T) {
		sql, args, err := pgstore.Compile(pgstore.Ever(dimPayment, def, Failed), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, "EXISTS (SELECT 1 FROM state_transitions AS sl WHERE sl.owner_type = $1 AND sl.owner_id = orders.id::text AND sl.dimension = $2 AND sl.to_state = $3)", sql)
		require.Equal(t, []any{"order", dimPayment, "failed"}, args)
	})
}

func TestCompileComposition(t *testing.T) {
	def := paymentDef(t)

	t.Run("and joins with parentheses", func(t *testing.T) {
		expr := pgstore.And(
			pgstore.CurrentIs(dimPayment, def, Paid),
			pgstore.Ever(dimPayment, def, Failed),
		)
		sql, args, err := pgstore.Compile(expr, ordersOwner)
		require.NoError(t, err)
		require.Equal(t, "("+latestSQL("$1", "$2", "= $3")+" AND EXISTS (SELECT 1 FROM state_transitions AS sl WHERE sl.owner_type = $4 AND sl.owner_id = orders.id::text AND sl.dimension = $5 AND sl.to_state = $6))", sql)
		require.Equal(t, []any{"order", dimPayment, "paid", "order", dimPayment, "failed"}, args)
	})

	t.Run("or joins with parentheses", func(t *testing.T) {
		expr := pgstore.Or(
			pgstore.CurrentIs(dimPayment, def, Paid),
			pgstore.CurrentIs(dimPayment, def, Failed),
		)
		sql, _, err := pgstore.Compile(expr, ordersOwner)
		require.NoError(t, err)
		require.Equal(t, "("+latestSQL("$1", "$2", "= $3")+" OR "+latestSQL("$4", "$5", "= $6")+")", sql)
	})

	t.Run("single child is inlined", func(t *testing.T) {
		sql, _, err := pgstore.Compile(pgstore.And(pgstore.CurrentIs(dimPayment, def, Paid)), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, latestSQL("$1", "$2", "= $3"), sql)
	})

	t.Run("not wraps the child", func(t *testing.T) {
		sql, _, err := pgstore.Compile(pgstore.Not(pgstore.Ever(dimPayment, def, Failed)), ordersOwner)
		require.NoError(t, err)
		require.Equal(t, "NOT (EXISTS (SELECT 1 FROM state_transitions AS sl WHERE sl.owner_type = $1 AND sl.owner_id = orders.id::text AND sl.dimension = $2 AND sl.to_state = $3))", sql)
	})
}

func TestCompileOptions(t *testing.T) {
	def := paymentDef(t)

	t.Run("arg offset shifts placeholders", func(t *testing.T) {
		sql, args, err := pgstore.Compile(pgstore.CurrentIs(dimPayment, def, Paid), ordersOwner, pgstore.WithArgOffset(2))
		require.NoError(t, err)
		require.Equal(t, latestSQL("$3", "$4", "= $5"), sql)
		require.Equal(t, []any{"order", dimPayment, "paid"}, args)
	})

	t.Run("custom table", func(t *testing.T) {
		sql, _, err := pgstore.Compile(pgstore.Ever(dimPayment, def, Failed), ordersOwner, pgstore.WithCompileTable("audit_log"))
		require.NoError(t, err)
		require.Equal(t, "EXISTS (SELECT 1 FROM audit_log AS sl WHERE sl.owner_type = $1 AND sl.owner_id = orders.id::text AND sl.dimension = $2 AND sl.to_state = $3)", sql)
	})
}

func TestCompileErrors(t *testing.T) {
	def := paymentDef(t)

	t.Run("nil expression", func(t *testing.T) {
		_, _, err := pgstore.Compile(nil, ordersOwner)
		require.ErrorIs(t, err, pgstore.ErrEmptyExpression)
	})

	t.Run("owner validation", func(t *testing.T) {
		_, _, err := pgstore.Compile(pgstore.CurrentIs(dimPayment, def, Paid), pgstore.Owner{IDExpr: "orders.id"})
		require.ErrorIs(t, err, pgstore.ErrEmptyOwnerType)

		_, _, err = pgstore.Compile(pgstore.CurrentIs(dimPayment, def, Paid), pgstore.Owner{Type: "order"})
		require.ErrorIs(t, err, pgstore.ErrEmptyOwnerIDExpr)
	})

	t.Run("predicate validation", func(t *testing.T) {
		_, _, err := pgstore.Compile(pgstore.CurrentIn(dimPayment, def), ordersOwner)
		require.ErrorIs(t, err, pgstore.ErrNoPredicateStates)

		_, _, err = pgstore.Compile(pgstore.CurrentIs("", def, Paid), ordersOwner)
		require.ErrorIs(t, err, pgstore.ErrEmptyDimension)

		_, _, err = pgstore.Compile(pgstore.CurrentIs(dimPayment, nil, Paid), ordersOwner)
		require.ErrorIs(t, err, pgstore.ErrNilDefinition)

		_, _, err = pgstore.Compile(pgstore.And(), ordersOwner)
		require.ErrorIs(t, err, pgstore.ErrEmptyExpression)

		_, _, err = pgstore.Compile(pgstore.Not(nil), ordersOwner)
		require.ErrorIs(t, err, pgstore.ErrEmptyExpression)
	})
}
