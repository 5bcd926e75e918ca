package lsm

import (
	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/query"
	"github.com/bobboyms/stonedb/pkg/sqlstmt"
	"github.com/bobboyms/stonedb/pkg/types"
)

// SQLResult is the row set one ExecuteSQL call produces: populated for
// SELECT, left empty (but non-error) for INSERT/UPDATE/DELETE.
type SQLResult struct {
	Items []types.Item
}

// ExecuteSQL parses and runs one SQL-subset statement (§4.7) against e.
// A "table.index" FROM/UPDATE target runs the statement against that named
// LSI/GSI instead of the base table. An IN predicate in the WHERE clause is
// expanded into one Query/Scan per value (pkg/sqlstmt.ExpandIN) and the
// per-branch results are unioned.
func ExecuteSQL(e *Engine, input string) (SQLResult, error) {
	stmt, err := sqlstmt.Parse(input)
	if err != nil {
		return SQLResult{}, err
	}
	switch stmt.Verb {
	case sqlstmt.Select:
		return execSelect(e, stmt)
	case sqlstmt.Insert:
		return SQLResult{}, e.Put(stmt.Table, stmt.Item, "", emptyContext)
	case sqlstmt.Update:
		return SQLResult{}, execUpdate(e, stmt)
	case sqlstmt.Delete:
		return execDelete(e, stmt)
	default:
		return SQLResult{}, errors.New(errors.InvalidQuery, "sqlstmt: unsupported statement")
	}
}

// pkPredicate finds the WHERE predicate that pins the partition key, if
// any one does. A sort-key comparison becomes the Query's ScanCondition
// (skCondition); every other ANDed predicate is applied by residualMatch
// after the lookup.
func pkPredicate(te *tableEntry, indexName string, preds []sqlstmt.Predicate) (types.Value, bool) {
	pkAttr := te.schema.PKAttr
	if indexName != "" {
		if idx, ok := te.schema.indexByName(indexName); ok {
			pkAttr = idx.PKAttr
		}
	}
	for _, p := range preds {
		if p.Attribute == pkAttr && p.Operator == "=" {
			return p.Value, true
		}
	}
	return types.Value{}, false
}

// skCondition builds a sort-key ScanCondition from the first comparison
// predicate targeting the table/index's sort-key attribute, if any.
func skCondition(te *tableEntry, indexName string, preds []sqlstmt.Predicate) *query.ScanCondition {
	skAttr := te.schema.SKAttr
	if indexName != "" {
		if idx, ok := te.schema.indexByName(indexName); ok {
			skAttr = idx.SKAttr
		}
	}
	if skAttr == "" {
		return nil
	}
	for _, p := range preds {
		if p.Attribute != skAttr {
			continue
		}
		op := query.OpEqual
		switch p.Operator {
		case "=":
			op = query.OpEqual
		case "!=":
			op = query.OpNotEqual
		case "<":
			op = query.OpLessThan
		case "<=":
			op = query.OpLessOrEqual
		case ">":
			op = query.OpGreaterThan
		case ">=":
			op = query.OpGreaterOrEqual
		default:
			continue
		}
		return &query.ScanCondition{Operator: op, Value: types.EncodedKey(scalarBytes(p.Value))}
	}
	return nil
}

// residualMatch applies every WHERE predicate that wasn't already folded
// into the partition-key lookup or the sort-key ScanCondition, as a
// straightforward in-memory attribute filter over the projected item.
func residualMatch(item types.Item, preds []sqlstmt.Predicate, skippedPK, skippedSK string) bool {
	for _, p := range preds {
		if p.Attribute == skippedPK || p.Attribute == skippedSK {
			continue
		}
		v, ok := item[p.Attribute]
		if !ok {
			return false
		}
		switch p.Operator {
		case "=":
			if !v.Equal(p.Value) {
				return false
			}
		case "!=":
			if v.Equal(p.Value) {
				return false
			}
		case "<", "<=", ">", ">=":
			c := v.Compare(p.Value)
			if !compareSatisfies(p.Operator, c) {
				return false
			}
		case "IN":
			found := false
			for _, cand := range p.Values {
				if v.Equal(cand) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func compareSatisfies(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

func execSelect(e *Engine, stmt *sqlstmt.Statement) (SQLResult, error) {
	te, err := e.table(stmt.Table)
	if err != nil {
		return SQLResult{}, err
	}

	branches := sqlstmt.ExpandIN(stmt.Where)
	seen := map[string]bool{}
	var out []types.Item

	for _, preds := range branches {
		pkVal, hasPK := pkPredicate(te, stmt.Index, preds)
		pkAttr := te.schema.PKAttr
		skAttr := te.schema.SKAttr
		if stmt.Index != "" {
			if idx, ok := te.schema.indexByName(stmt.Index); ok {
				pkAttr, skAttr = idx.PKAttr, idx.SKAttr
			}
		}

		var res query.Result
		if hasPK {
			res, err = e.Query(stmt.Table, stmt.Index, pkVal, skCondition(te, stmt.Index, preds), query.Page{})
		} else {
			res, err = e.Scan(stmt.Table, nil, query.Page{})
		}
		if err != nil {
			return SQLResult{}, err
		}

		for _, rec := range res.Records {
			item := rec.Value
			if !residualMatch(item, preds, pkAttr, skAttr) {
				continue
			}
			key := string(rec.Key.Encode())
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, projectColumns(item, stmt.Columns))
		}
	}
	return SQLResult{Items: out}, nil
}

func projectColumns(item types.Item, columns []string) types.Item {
	if len(columns) == 0 {
		return item
	}
	projected := types.Item{}
	for _, c := range columns {
		if v, ok := item[c]; ok {
			projected[c] = v
		}
	}
	return projected
}

func execUpdate(e *Engine, stmt *sqlstmt.Statement) error {
	if _, err := e.table(stmt.Table); err != nil {
		return err
	}
	sel, err := execSelect(e, &sqlstmt.Statement{Verb: sqlstmt.Select, Table: stmt.Table, Index: stmt.Index, Where: stmt.Where})
	if err != nil {
		return err
	}
	for _, item := range sel.Items {
		next := item.Clone()
		for attr, val := range stmt.SetClauses {
			next[attr] = val
		}
		for _, attr := range stmt.RemoveColumns {
			delete(next, attr)
		}
		if err := e.Put(stmt.Table, next, "", emptyContext); err != nil {
			return err
		}
	}
	return nil
}

func execDelete(e *Engine, stmt *sqlstmt.Statement) (SQLResult, error) {
	te, err := e.table(stmt.Table)
	if err != nil {
		return SQLResult{}, err
	}
	sel, err := execSelect(e, &sqlstmt.Statement{Verb: sqlstmt.Select, Table: stmt.Table, Index: stmt.Index, Where: stmt.Where})
	if err != nil {
		return SQLResult{}, err
	}
	for _, item := range sel.Items {
		key, err := te.schema.baseKeyFor(item)
		if err != nil {
			return SQLResult{}, err
		}
		if err := e.Delete(stmt.Table, key, "", emptyContext); err != nil {
			return SQLResult{}, err
		}
	}
	return SQLResult{}, nil
}
