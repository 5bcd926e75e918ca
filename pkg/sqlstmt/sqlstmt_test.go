package sqlstmt_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobboyms/stonedb/pkg/sqlstmt"
	"github.com/bobboyms/stonedb/pkg/types"
)

func TestParse_Select(t *testing.T) {
	stmt, err := sqlstmt.Parse("SELECT id, name FROM orders WHERE customerId = 'c1' AND total > 10")
	require.NoError(t, err)
	require.Equal(t, sqlstmt.Select, stmt.Verb)
	require.Equal(t, "orders", stmt.Table)
	require.Equal(t, []string{"id", "name"}, stmt.Columns)
	require.Len(t, stmt.Where, 2)
	require.Equal(t, "customerId", stmt.Where[0].Attribute)
	require.Equal(t, "=", stmt.Where[0].Operator)
	require.Equal(t, types.S("c1"), stmt.Where[0].Value)
	require.Equal(t, ">", stmt.Where[1].Operator)
}

func TestParse_SelectFromIndex(t *testing.T) {
	stmt, err := sqlstmt.Parse("SELECT * FROM orders.by_status WHERE status = 'open'")
	require.NoError(t, err)
	require.Equal(t, "orders", stmt.Table)
	require.Equal(t, "by_status", stmt.Index)
	require.Nil(t, stmt.Columns)
}

func TestParse_InsertMapLiteral(t *testing.T) {
	stmt, err := sqlstmt.Parse(`INSERT INTO orders VALUE {'id': 'o1', 'total': 42}`)
	require.NoError(t, err)
	require.Equal(t, sqlstmt.Insert, stmt.Verb)
	require.Equal(t, types.S("o1"), stmt.Item["id"])
	require.Equal(t, types.N("42"), stmt.Item["total"])
}

func TestParse_UpdateSetAndRemove(t *testing.T) {
	stmt, err := sqlstmt.Parse("UPDATE orders SET status = 'shipped' REMOVE note WHERE id = 'o1'")
	require.NoError(t, err)
	require.Equal(t, sqlstmt.Update, stmt.Verb)
	require.Equal(t, types.S("shipped"), stmt.SetClauses["status"])
	require.Equal(t, []string{"note"}, stmt.RemoveColumns)
	require.Len(t, stmt.Where, 1)
}

func TestParse_DeleteWithIN(t *testing.T) {
	stmt, err := sqlstmt.Parse("DELETE FROM orders WHERE status IN ('open', 'shipped')")
	require.NoError(t, err)
	require.Equal(t, sqlstmt.Delete, stmt.Verb)
	require.Len(t, stmt.Where, 1)
	require.Equal(t, "IN", stmt.Where[0].Operator)
	require.Len(t, stmt.Where[0].Values, 2)
}

func TestExpandIN(t *testing.T) {
	preds := []sqlstmt.Predicate{
		{Attribute: "customerId", Operator: "=", Value: types.S("c1")},
		{Attribute: "status", Operator: "IN", Values: []types.Value{types.S("open"), types.S("shipped")}},
	}
	branches := sqlstmt.ExpandIN(preds)
	require.Len(t, branches, 2)
	for _, b := range branches {
		require.Len(t, b, 2)
		require.Equal(t, "customerId", b[0].Attribute)
		require.Equal(t, "=", b[1].Operator)
	}
}
