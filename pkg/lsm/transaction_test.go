package lsm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobboyms/stonedb/pkg/expr"
	"github.com/bobboyms/stonedb/pkg/lsm"
	"github.com/bobboyms/stonedb/pkg/types"
)

func accountsSchema() lsm.TableSchema {
	return lsm.TableSchema{
		Name:   "accounts",
		PKAttr: "id",
		Attributes: []lsm.AttributeSchema{
			{Name: "id", Type: types.KindS, Required: true},
			{Name: "balance", Type: types.KindN, Required: true},
		},
	}
}

func TestTransactWrite_AppliesAllOrNothing(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.CreateTable(accountsSchema()))
	require.NoError(t, e.Put("accounts", types.Item{"id": types.S("alice"), "balance": types.N("100.00")}, "", expr.Context{}))
	require.NoError(t, e.Put("accounts", types.Item{"id": types.S("bob"), "balance": types.N("20.00")}, "", expr.Context{}))

	err := e.TransactWrite(lsm.TransactWriteRequest{
		Conditions: []lsm.TransactCondition{
			{
				Table:         "accounts",
				Key:           types.Key{PK: []byte("alice")},
				ConditionExpr: "balance >= :amount",
				Ctx:           expr.Context{Values: map[string]types.Value{":amount": types.N("30.00")}},
			},
		},
		Puts: []lsm.TransactPut{
			{Table: "accounts", Item: types.Item{"id": types.S("alice"), "balance": types.N("70.00")}},
			{Table: "accounts", Item: types.Item{"id": types.S("bob"), "balance": types.N("50.00")}},
		},
	})
	require.NoError(t, err)

	alice, _, _ := e.Get("accounts", types.Key{PK: []byte("alice")})
	bob, _, _ := e.Get("accounts", types.Key{PK: []byte("bob")})
	require.Equal(t, types.N("70.00"), alice["balance"])
	require.Equal(t, types.N("50.00"), bob["balance"])
}

func TestTransactWrite_CanceledLeavesStateUntouched(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.CreateTable(accountsSchema()))
	require.NoError(t, e.Put("accounts", types.Item{"id": types.S("bob"), "balance": types.N("20.00")}, "", expr.Context{}))

	err := e.TransactWrite(lsm.TransactWriteRequest{
		Conditions: []lsm.TransactCondition{
			{
				Table:         "accounts",
				Key:           types.Key{PK: []byte("bob")},
				ConditionExpr: "balance >= :amount",
				Ctx:           expr.Context{Values: map[string]types.Value{":amount": types.N("1000.00")}},
			},
		},
		Puts: []lsm.TransactPut{
			{Table: "accounts", Item: types.Item{"id": types.S("bob"), "balance": types.N("0.00")}},
		},
	})
	require.Error(t, err)

	bob, _, _ := e.Get("accounts", types.Key{PK: []byte("bob")})
	require.Equal(t, types.N("20.00"), bob["balance"])
}

func TestTransactGet(t *testing.T) {
	e := openEngine(t)
	require.NoError(t, e.CreateTable(accountsSchema()))
	require.NoError(t, e.Put("accounts", types.Item{"id": types.S("alice"), "balance": types.N("100.00")}, "", expr.Context{}))

	results, err := e.TransactGet([]lsm.TransactGetRequest{
		{Table: "accounts", Key: types.Key{PK: []byte("alice")}},
		{Table: "accounts", Key: types.Key{PK: []byte("nobody")}},
	})
	require.NoError(t, err)
	require.True(t, results[0].Found)
	require.False(t, results[1].Found)
}
