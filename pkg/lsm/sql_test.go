package lsm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobboyms/stonedb/pkg/expr"
	"github.com/bobboyms/stonedb/pkg/lsm"
	"github.com/bobboyms/stonedb/pkg/types"
)

func seedOrders(t *testing.T, e *lsm.Engine) {
	t.Helper()
	require.NoError(t, e.CreateTable(ordersSchema()))
	rows := []types.Item{
		{"customerId": types.S("c1"), "orderId": types.S("o1"), "status": types.S("open"), "total": types.N("10.00")},
		{"customerId": types.S("c1"), "orderId": types.S("o2"), "status": types.S("shipped"), "total": types.N("20.00")},
		{"customerId": types.S("c2"), "orderId": types.S("o3"), "status": types.S("open"), "total": types.N("30.00")},
	}
	for _, r := range rows {
		require.NoError(t, e.Put("orders", r, "", expr.Context{}))
	}
}

func TestExecuteSQL_SelectByPartitionKey(t *testing.T) {
	e := openEngine(t)
	seedOrders(t, e)

	res, err := lsm.ExecuteSQL(e, "SELECT * FROM orders WHERE customerId = 'c1'")
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
}

func TestExecuteSQL_SelectWithINExpandsAndUnions(t *testing.T) {
	e := openEngine(t)
	seedOrders(t, e)

	res, err := lsm.ExecuteSQL(e, "SELECT * FROM orders WHERE customerId = 'c1' AND status IN ('open', 'shipped')")
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
}

func TestExecuteSQL_SelectProjectsColumns(t *testing.T) {
	e := openEngine(t)
	seedOrders(t, e)

	res, err := lsm.ExecuteSQL(e, "SELECT status FROM orders WHERE customerId = 'c1' AND orderId = 'o1'")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	_, hasTotal := res.Items[0]["total"]
	require.False(t, hasTotal)
	require.Equal(t, types.S("open"), res.Items[0]["status"])
}

func TestExecuteSQL_UpdateThenSelect(t *testing.T) {
	e := openEngine(t)
	seedOrders(t, e)

	_, err := lsm.ExecuteSQL(e, "UPDATE orders SET status = 'shipped' WHERE customerId = 'c2' AND orderId = 'o3'")
	require.NoError(t, err)

	res, err := lsm.ExecuteSQL(e, "SELECT * FROM orders WHERE customerId = 'c2' AND orderId = 'o3'")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	require.Equal(t, types.S("shipped"), res.Items[0]["status"])
}

func TestExecuteSQL_Delete(t *testing.T) {
	e := openEngine(t)
	seedOrders(t, e)

	_, err := lsm.ExecuteSQL(e, "DELETE FROM orders WHERE customerId = 'c1' AND orderId = 'o1'")
	require.NoError(t, err)

	res, err := lsm.ExecuteSQL(e, "SELECT * FROM orders WHERE customerId = 'c1'")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
}

func TestExecuteSQL_Insert(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.CreateTable(ordersSchema()))

	_, err := lsm.ExecuteSQL(e, `INSERT INTO orders VALUE {'customerId': 'c9', 'orderId': 'o9', 'status': 'open', 'total': 5}`)
	require.NoError(t, err)

	res, err := lsm.ExecuteSQL(e, "SELECT * FROM orders WHERE customerId = 'c9'")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
}
