package lsm

import "github.com/bobboyms/stonedb/pkg/types"

// BatchGetRequest names one row to fetch as part of a BatchGet.
type BatchGetRequest struct {
	Table string
	Key   types.Key
}

// BatchGetResult is one BatchGet response slot: best-effort, per item — a
// failed lookup never aborts the rest of the batch (§6's named-but-bodyless
// BatchGet, given DynamoDB-style partial-failure semantics here).
type BatchGetResult struct {
	Request BatchGetRequest
	Item    types.Item
	Found   bool
	Err     error
}

// BatchGet fetches every requested row independently, returning one result
// per request in the same order.
func (e *Engine) BatchGet(reqs []BatchGetRequest) []BatchGetResult {
	out := make([]BatchGetResult, len(reqs))
	for i, r := range reqs {
		item, found, err := e.Get(r.Table, r.Key)
		out[i] = BatchGetResult{Request: r, Item: item, Found: found, Err: err}
	}
	return out
}

// BatchWriteOp is one Put or Delete within a BatchWrite.
type BatchWriteOp struct {
	Table  string
	Item   types.Item // for a Put
	Delete bool
	Key    types.Key // for a Delete
}

// BatchWriteResult reports the outcome of one BatchWriteOp.
type BatchWriteResult struct {
	Op  BatchWriteOp
	Err error
}

// BatchWrite applies every op independently and reports a per-op result;
// one failing item does not roll back the others (DynamoDB's BatchWriteItem
// semantics, grounded on kstone-api/src/batch.rs).
func (e *Engine) BatchWrite(ops []BatchWriteOp) []BatchWriteResult {
	out := make([]BatchWriteResult, len(ops))
	for i, op := range ops {
		var err error
		if op.Delete {
			err = e.Delete(op.Table, op.Key, "", emptyContext)
		} else {
			err = e.Put(op.Table, op.Item, "", emptyContext)
		}
		out[i] = BatchWriteResult{Op: op, Err: err}
	}
	return out
}
