package lsm_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/expr"
	"github.com/bobboyms/stonedb/pkg/lsm"
	"github.com/bobboyms/stonedb/pkg/query"
	"github.com/bobboyms/stonedb/pkg/types"
)

func openEngine(t *testing.T) *lsm.Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := lsm.Open(lsm.DefaultOptions(filepath.Join(dir, "db")))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func ordersSchema() lsm.TableSchema {
	return lsm.TableSchema{
		Name:   "orders",
		PKAttr: "customerId",
		SKAttr: "orderId",
		Attributes: []lsm.AttributeSchema{
			{Name: "customerId", Type: types.KindS, Required: true},
			{Name: "orderId", Type: types.KindS, Required: true},
			{Name: "status", Type: types.KindS, Required: true},
			{Name: "total", Type: types.KindN, Required: true},
		},
		Indexes: []lsm.IndexDef{
			{Name: "by-status", Kind: lsm.LocalSecondaryIndex, PKAttr: "customerId", SKAttr: "status"},
		},
	}
}

func TestEngine_PutGetDelete(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.CreateTable(ordersSchema()))

	item := types.Item{
		"customerId": types.S("c1"),
		"orderId":    types.S("o1"),
		"status":     types.S("open"),
		"total":      types.N("10.00"),
	}
	require.NoError(t, e.Put("orders", item, "", expr.Context{}))

	got, found, err := e.Get("orders", types.Key{PK: []byte("c1"), SK: []byte("o1")})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, types.S("open"), got["status"])

	require.NoError(t, e.Delete("orders", types.Key{PK: []byte("c1"), SK: []byte("o1")}, "", expr.Context{}))
	_, found, err = e.Get("orders", types.Key{PK: []byte("c1"), SK: []byte("o1")})
	require.NoError(t, err)
	require.False(t, found)
}

func TestEngine_PutCondition(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.CreateTable(ordersSchema()))

	item := types.Item{"customerId": types.S("c1"), "orderId": types.S("o1"), "status": types.S("open"), "total": types.N("10.00")}
	require.NoError(t, e.Put("orders", item, "", expr.Context{}))

	// Conditioned re-put with a false condition must fail and leave the row unchanged.
	err := e.Put("orders", item, "attribute_not_exists(customerId)", expr.Context{})
	require.Error(t, err)
	require.Equal(t, errors.ConditionalCheckFailed, errors.CodeOf(err))

	got, _, _ := e.Get("orders", types.Key{PK: []byte("c1"), SK: []byte("o1")})
	require.Equal(t, types.S("open"), got["status"])
}

func TestEngine_Update(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.CreateTable(ordersSchema()))

	item := types.Item{"customerId": types.S("c1"), "orderId": types.S("o1"), "status": types.S("open"), "total": types.N("10.00")}
	require.NoError(t, e.Put("orders", item, "", expr.Context{}))

	next, err := e.Update(
		"orders",
		types.Key{PK: []byte("c1"), SK: []byte("o1")},
		"SET status = :s",
		"",
		expr.Context{Values: map[string]types.Value{":s": types.S("shipped")}},
	)
	require.NoError(t, err)
	require.Equal(t, types.S("shipped"), next["status"])

	got, _, _ := e.Get("orders", types.Key{PK: []byte("c1"), SK: []byte("o1")})
	require.Equal(t, types.S("shipped"), got["status"])
}

func TestEngine_QueryByIndexAndScan(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.CreateTable(ordersSchema()))

	rows := []types.Item{
		{"customerId": types.S("c1"), "orderId": types.S("o1"), "status": types.S("open"), "total": types.N("10.00")},
		{"customerId": types.S("c1"), "orderId": types.S("o2"), "status": types.S("shipped"), "total": types.N("20.00")},
		{"customerId": types.S("c2"), "orderId": types.S("o3"), "status": types.S("open"), "total": types.N("30.00")},
	}
	for _, r := range rows {
		require.NoError(t, e.Put("orders", r, "", expr.Context{}))
	}

	res, err := e.Query("orders", "", types.S("c1"), nil, query.Page{})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	res, err = e.Query("orders", "by-status", types.S("c1"), query.Equal(types.EncodedKey("open")), query.Page{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	require.Equal(t, types.S("o1"), res.Records[0].Value["orderId"])

	res, err = e.Scan("orders", nil, query.Page{})
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
}

func TestEngine_ReopenReplaysWAL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db")

	e1, err := lsm.Open(lsm.DefaultOptions(path))
	require.NoError(t, err)
	require.NoError(t, e1.CreateTable(ordersSchema()))
	require.NoError(t, e1.Put("orders", types.Item{
		"customerId": types.S("c1"), "orderId": types.S("o1"), "status": types.S("open"), "total": types.N("10.00"),
	}, "", expr.Context{}))
	require.NoError(t, e1.Close())

	e2, err := lsm.Open(lsm.DefaultOptions(path))
	require.NoError(t, err)
	defer e2.Close()

	got, found, err := e2.Get("orders", types.Key{PK: []byte("c1"), SK: []byte("o1")})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, types.S("open"), got["status"])
}

func TestEngine_BatchGetWrite(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.CreateTable(ordersSchema()))

	results := e.BatchWrite([]lsm.BatchWriteOp{
		{Table: "orders", Item: types.Item{"customerId": types.S("c1"), "orderId": types.S("o1"), "status": types.S("open"), "total": types.N("1.00")}},
		{Table: "orders", Item: types.Item{"customerId": types.S("c1"), "orderId": types.S("o2"), "status": types.S("open"), "total": types.N("2.00")}},
	})
	for _, r := range results {
		require.NoError(t, r.Err)
	}

	gets := e.BatchGet([]lsm.BatchGetRequest{
		{Table: "orders", Key: types.Key{PK: []byte("c1"), SK: []byte("o1")}},
		{Table: "orders", Key: types.Key{PK: []byte("c1"), SK: []byte("missing")}},
	})
	require.True(t, gets[0].Found)
	require.False(t, gets[1].Found)
}
