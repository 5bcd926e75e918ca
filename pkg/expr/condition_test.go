package expr_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobboyms/stonedb/pkg/expr"
	"github.com/bobboyms/stonedb/pkg/types"
)

func TestEval_Comparisons(t *testing.T) {
	item := types.Item{
		"age":    types.N("30"),
		"name":   types.S("alice"),
		"active": types.Bool(true),
	}

	cases := []struct {
		expr string
		want bool
	}{
		{"age = :age", true},
		{"age < :age", false},
		{"age <= :age", true},
		{"age > :lower", true},
		{"name = :name", true},
		{"attribute_exists(age)", true},
		{"attribute_not_exists(missing)", true},
		{"begins_with(name, :prefix)", true},
		{"age = :age AND active = :active", true},
		{"age = :age AND active = :inactive", false},
		{"NOT (age = :lower)", true},
	}

	ctx := expr.Context{Values: map[string]types.Value{
		":age":      types.N("30"),
		":lower":    types.N("10"),
		":name":     types.S("alice"),
		":active":   types.Bool(true),
		":inactive": types.Bool(false),
		":prefix":   types.S("al"),
	}}

	for _, c := range cases {
		node, err := expr.ParseCondition(c.expr)
		require.NoError(t, err, c.expr)
		got, err := expr.Eval(node, item, ctx)
		require.NoError(t, err, c.expr)
		require.Equal(t, c.want, got, c.expr)
	}
}

func TestEval_NamePlaceholder(t *testing.T) {
	item := types.Item{"status": types.S("open")}
	node, err := expr.ParseCondition("#s = :v")
	require.NoError(t, err)

	ctx := expr.Context{
		Names:  map[string]string{"#s": "status"},
		Values: map[string]types.Value{":v": types.S("open")},
	}
	ok, err := expr.Eval(node, item, ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEval_MissingAttributeNeverCompares(t *testing.T) {
	item := types.Item{}
	node, err := expr.ParseCondition("age = :age")
	require.NoError(t, err)
	ok, err := expr.Eval(node, item, expr.Context{Values: map[string]types.Value{":age": types.N("1")}})
	require.NoError(t, err)
	require.False(t, ok)
}
