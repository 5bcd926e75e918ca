// Package lsm is the engine proper (§3–§6): 256 striped memtables backed
// by a ring-buffer WAL and manifest, flushed to immutable SSTs, queried
// through the expression/query layers, and exposed as tables with
// secondary indexes, streams, TTL and transactions.
package lsm

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bobboyms/stonedb/pkg/block"
	"github.com/bobboyms/stonedb/pkg/btree"
	"github.com/bobboyms/stonedb/pkg/codec"
	"github.com/bobboyms/stonedb/pkg/errors"
	"github.com/bobboyms/stonedb/pkg/expr"
	"github.com/bobboyms/stonedb/pkg/manifest"
	"github.com/bobboyms/stonedb/pkg/query"
	"github.com/bobboyms/stonedb/pkg/sstable"
	"github.com/bobboyms/stonedb/pkg/types"
	"github.com/bobboyms/stonedb/pkg/wal"
)

// btreeOrder is the B+Tree branching factor used for every stripe's
// memtable, matching the teacher's default order for pkg/btree.
const btreeOrder = 64

// emptyContext is the placeholder expr.Context for call paths (batch ops,
// post-update re-Put) that carry no #name/:value placeholders of their own.
var emptyContext = expr.Context{}

// Options configures an Engine.
type Options struct {
	Dir            string
	RingSize       int64
	FlushThreshold int // bytes; a stripe flushes once its memtable reaches this
	// MemtableRecordThreshold is the other half of §6's memtable flush
	// trigger: a stripe also flushes once it holds at least this many
	// records, independent of FlushThreshold's byte count.
	MemtableRecordThreshold int
	Codec                   block.Codec
	StreamCapacity          int

	// CompactionEnabled gates the synchronous compaction flush triggers
	// (§4.5: a flush that leaves a stripe at or above CompactionSSTThreshold
	// SSTs runs a compaction of that stripe before returning).
	CompactionEnabled bool
	// CompactionSSTThreshold is §6's DatabaseConfig.compaction.sst_threshold.
	CompactionSSTThreshold int
	// CompactionCheckIntervalSeconds is §6's
	// DatabaseConfig.compaction.check_interval_seconds. stonedb has no
	// background compaction scheduler — every compaction runs inline from
	// flush — so this field is carried for config-surface parity with §6
	// but otherwise unused.
	CompactionCheckIntervalSeconds int
	// MaxConcurrentCompactions bounds how many stripes may run Compact at
	// once, since multiple stripes can cross their flush threshold and
	// trigger a compaction concurrently.
	MaxConcurrentCompactions int
}

// DefaultOptions returns sensible defaults for an on-disk engine rooted at dir.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:                            dir,
		RingSize:                       64 * 1024 * 1024,
		FlushThreshold:                 4 * 1024 * 1024,
		MemtableRecordThreshold:        1000,
		Codec:                          block.Codec{Compression: block.CompressionNone},
		StreamCapacity:                 1024,
		CompactionEnabled:              true,
		CompactionSSTThreshold:         10,
		CompactionCheckIntervalSeconds: 60,
		MaxConcurrentCompactions:       4,
	}
}

type tableEntry struct {
	schema *TableSchema
	id     uint16
}

type stripeState struct {
	mu         sync.RWMutex
	mem        *btree.BPlusTree[*types.Record]
	memBytes   int
	memCount   int
	sstReaders []*sstable.Reader // newest first
}

// Engine is the open, running database rooted at one directory.
type Engine struct {
	opts    Options
	epochID uuid.UUID

	walFile  *wal.Writer
	mf       *manifest.Manifest
	seq      SeqTracker
	metrics  *Metrics

	mu          sync.RWMutex
	tables      map[string]*tableEntry
	nextTableID uint16
	streams     map[string]*streamBuffer

	stripes   [types.StripeCount]*stripeState
	nextSstID atomic.Uint64

	// writeMu serializes Put/Delete/Update against TransactWrite/TransactGet
	// so a transaction's check-then-apply phases observe a consistent
	// snapshot (§6's isolation requirement for TransactWrite).
	writeMu sync.Mutex
	// compactSem bounds how many stripes may run Compact concurrently.
	compactSem chan struct{}
}

// Open opens (creating if necessary) the engine rooted at opts.Dir,
// replaying its WAL and manifest to rebuild every stripe's memtable and
// SST reader set.
func Open(opts Options) (*Engine, error) {
	if opts.Dir == "" {
		return nil, errors.New(errors.InvalidArgument, "lsm: Options.Dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.IOError, err, "lsm: failed to create %q", opts.Dir)
	}
	sstDir := filepath.Join(opts.Dir, "sst")
	if err := os.MkdirAll(sstDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.IOError, err, "lsm: failed to create %q", sstDir)
	}

	maxConcurrentCompactions := opts.MaxConcurrentCompactions
	if maxConcurrentCompactions < 1 {
		maxConcurrentCompactions = 1
	}
	e := &Engine{
		opts:       opts,
		tables:     make(map[string]*tableEntry),
		streams:    make(map[string]*streamBuffer),
		metrics:    NewMetrics(nil),
		compactSem: make(chan struct{}, maxConcurrentCompactions),
	}
	for i := range e.stripes {
		e.stripes[i] = &stripeState{mem: btree.NewTree[*types.Record](btreeOrder)}
	}

	if err := e.loadCatalog(); err != nil {
		return nil, err
	}

	mf, err := manifest.Open(filepath.Join(opts.Dir, "MANIFEST"), opts.RingSize)
	if err != nil {
		return nil, err
	}
	e.mf = mf

	if err := e.openSstReaders(); err != nil {
		return nil, err
	}

	if err := e.openWAL(); err != nil {
		return nil, err
	}

	if e.epochID == uuid.Nil {
		e.epochID = uuid.New()
	}

	return e, nil
}

func (e *Engine) openSstReaders() error {
	state := e.mf.State()
	e.seq.Observe(state.LastSeq)
	for stripe := 0; stripe < types.StripeCount; stripe++ {
		infos := state.SstablesForStripe(stripe)
		// newest first: manifest returns ascending by ID (oldest first), reverse.
		for i := len(infos) - 1; i >= 0; i-- {
			path := sstPath(e.opts.Dir, infos[i].ID)
			r, err := sstable.Open(path, e.opts.Codec, true)
			if err != nil {
				return errors.Wrap(errors.Corruption, err, "lsm: failed to open sst %q", path)
			}
			e.stripes[stripe].sstReaders = append(e.stripes[stripe].sstReaders, r)
			if infos[i].ID >= e.nextSstID.Load() {
				e.nextSstID.Store(infos[i].ID + 1)
			}
		}
	}
	return nil
}

func (e *Engine) openWAL() error {
	walPath := filepath.Join(e.opts.Dir, "wal.log")
	var nextLSN uint64 = 1
	var stopOffset int64

	if reader, err := wal.NewReader(walPath); err == nil {
		result, recErr := reader.Recover(e.opts.RingSize)
		reader.Close()
		if recErr != nil && len(result.Records) == 0 {
			return errors.Wrap(errors.Corruption, recErr, "lsm: wal recovery failed")
		}
		for _, rec := range result.Records {
			if err := e.replayWALRecord(rec.Payload); err != nil {
				continue
			}
		}
		nextLSN = result.NextLSN
		stopOffset = result.StopOffset
	}

	opts := wal.DefaultOptions()
	opts.Path = walPath
	opts.RingSize = e.opts.RingSize
	w, err := wal.Open(opts)
	if err != nil {
		return err
	}
	w.Resume(stopOffset, 0, nextLSN)
	e.walFile = w
	return nil
}

// replayWALRecord decodes one WAL payload (stripe u32 ‖ codec.EncodeRecord)
// and applies it directly to the owning stripe's memtable.
func (e *Engine) replayWALRecord(payload []byte) error {
	if len(payload) < 4 {
		return errors.New(errors.Corruption, "lsm: wal payload too short")
	}
	stripe := int(binary.LittleEndian.Uint32(payload[0:4]))
	rec, err := codec.DecodeRecord(payload[4:], true)
	if err != nil {
		return err
	}
	e.seq.Observe(rec.Seq)
	st := e.stripes[stripe]
	ek := types.EncodedKey(rec.Key.Encode())
	recPtr := &rec
	st.mem.Replace(ek, recPtr)
	return nil
}

func encodeWALPayload(stripe int, rec types.Record) ([]byte, error) {
	body, err := codec.EncodeRecord(rec)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(stripe))
	copy(buf[4:], body)
	return buf, nil
}

func sstPath(dir string, id uint64) string {
	return filepath.Join(dir, "sst", fmtSstName(id))
}

func fmtSstName(id uint64) string {
	const hex = "0123456789abcdef"
	b := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		b[i] = hex[id&0xf]
		id >>= 4
	}
	return string(b) + ".sst"
}

// Close flushes nothing implicitly (flush happens inline on writes that
// cross FlushThreshold); it closes the WAL, manifest, and every open SST
// reader.
func (e *Engine) Close() error {
	for _, st := range e.stripes {
		for _, r := range st.sstReaders {
			r.Close()
		}
	}
	if err := e.walFile.Close(); err != nil {
		return err
	}
	return e.mf.Close()
}

func (e *Engine) catalogPath() string {
	return filepath.Join(e.opts.Dir, "schema.json")
}

type catalogEntry struct {
	Schema TableSchema
	ID     uint16
}

func (e *Engine) loadCatalog() error {
	buf, err := os.ReadFile(e.catalogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.IOError, err, "lsm: failed to read schema catalog")
	}
	var entries []catalogEntry
	if err := json.Unmarshal(buf, &entries); err != nil {
		return errors.Wrap(errors.Corruption, err, "lsm: failed to parse schema catalog")
	}
	for _, ce := range entries {
		schema := ce.Schema
		e.tables[schema.Name] = &tableEntry{schema: &schema, id: ce.ID}
		if ce.ID >= e.nextTableID {
			e.nextTableID = ce.ID + 1
		}
	}
	return nil
}

func (e *Engine) saveCatalog() error {
	entries := make([]catalogEntry, 0, len(e.tables))
	for _, te := range e.tables {
		entries = append(entries, catalogEntry{Schema: *te.schema, ID: te.id})
	}
	buf, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(errors.InternalError, err, "lsm: failed to encode schema catalog")
	}
	return os.WriteFile(e.catalogPath(), buf, 0o644)
}

// CreateTable registers a new table's schema, persisting the catalog. The
// embedded application's own process is the only validation authority —
// there is no DDL language beyond this call and pkg/sqlstmt's CREATE-less
// subset (§4.7 covers only the four DML verbs).
func (e *Engine) CreateTable(schema TableSchema) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.tables[schema.Name]; exists {
		return &errors.TableAlreadyExistsError{Name: schema.Name}
	}
	cp := schema
	e.tables[schema.Name] = &tableEntry{schema: &cp, id: e.nextTableID}
	e.nextTableID++
	return e.saveCatalog()
}

func (e *Engine) table(name string) (*tableEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	te, ok := e.tables[name]
	if !ok {
		return nil, &errors.TableNotFoundError{Name: name}
	}
	return te, nil
}

// physicalPK namespaces a table's base partition key bytes so multiple
// tables can share the engine's single flat key space without collisions.
// The stripe a row lives in is still computed from the un-namespaced pk,
// per §3, so rows for the same logical partition key always land in the
// same stripe regardless of which table they belong to.
func physicalPK(tableID uint16, pk []byte) []byte {
	buf := make([]byte, 2+len(pk))
	binary.BigEndian.PutUint16(buf[0:2], tableID)
	copy(buf[2:], pk)
	return buf
}

func (e *Engine) putRecord(stripe int, key types.Key, seq uint64, item types.Item) error {
	payload, err := encodeWALPayload(stripe, types.Record{Key: key, Seq: seq, Value: item})
	if err != nil {
		return err
	}
	if _, err := e.walFile.WriteRecord(payload); err != nil {
		return err
	}
	// §4.1/I4: a write is only acknowledged once its WAL record is durable,
	// so every append on this path is followed by a synchronous fsync
	// rather than relying on the background SyncInterval timer.
	if err := e.walFile.Sync(); err != nil {
		return err
	}
	e.metrics.WALFsyncsTotal.Inc()
	st := e.stripes[stripe]
	rec := &types.Record{Key: key, Seq: seq, Value: item}
	ek := types.EncodedKey(key.Encode())

	// st.mem is swapped out for a fresh tree by flush under st.mu.Lock
	// (compaction.go); read the current pointer and apply the write to it
	// under the matching RLock so a concurrent flush can't swap the tree
	// out from under this write and silently drop it.
	st.mu.RLock()
	mem := st.mem
	replaceErr := mem.Replace(ek, rec)
	st.mu.RUnlock()
	if replaceErr != nil {
		return replaceErr
	}

	st.mu.Lock()
	st.memBytes += len(payload)
	st.memCount++
	needsFlush := st.memBytes >= e.opts.FlushThreshold || st.memCount >= e.opts.MemtableRecordThreshold
	st.mu.Unlock()
	if needsFlush {
		return e.flush(stripe)
	}
	return nil
}

// Put inserts or replaces item in tableName, enforcing the table's
// attribute schema and, if conditionExpr is non-empty, a condition
// expression evaluated against the row's current image (§4.6).
func (e *Engine) Put(tableName string, item types.Item, conditionExpr string, ctx expr.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.putLocked(tableName, item, conditionExpr, ctx)
}

// putLocked is Put's body, callable by holders of writeMu (TransactWrite)
// without re-acquiring it.
func (e *Engine) putLocked(tableName string, item types.Item, conditionExpr string, ctx expr.Context) error {
	te, err := e.table(tableName)
	if err != nil {
		return err
	}
	schema := te.schema
	if err := validateItem(schema, item); err != nil {
		return err
	}
	baseKey, err := schema.baseKeyFor(item)
	if err != nil {
		return err
	}

	current, found, err := e.Get(tableName, baseKey)
	if err != nil {
		return err
	}
	if conditionExpr != "" {
		if err := checkCondition(conditionExpr, current, found, ctx); err != nil {
			return err
		}
	}

	seq := e.seq.Next()
	phys := types.Key{PK: physicalPK(te.id, baseKey.PK), SK: baseKey.SK}
	stripe := types.Stripe(baseKey.PK)
	if err := e.putRecord(stripe, phys, seq, item.Clone()); err != nil {
		return err
	}

	for _, idxRec := range buildIndexRecords(schema, item, baseKey) {
		idxPhys := types.Key{PK: physicalPK(te.id, idxRec.key.PK)}
		if err := e.putRecord(idxRec.stripe, idxPhys, seq, idxRec.item); err != nil {
			return err
		}
	}

	evType := StreamInsert
	if found {
		evType = StreamModify
	}
	e.emitStreamEvent(tableName, StreamEvent{Seq: seq, Type: evType, TableName: tableName, Key: baseKey, OldImage: current, NewImage: item})
	return nil
}

// Get returns tableName's current row for key, or found=false if absent or
// expired under the table's TTL attribute.
func (e *Engine) Get(tableName string, key types.Key) (types.Item, bool, error) {
	te, err := e.table(tableName)
	if err != nil {
		return nil, false, err
	}
	phys := types.Key{PK: physicalPK(te.id, key.PK), SK: key.SK}
	rec, ok, err := e.lookup(types.Stripe(key.PK), phys)
	if err != nil || !ok {
		return nil, false, err
	}
	if rec.IsTombstone() {
		return nil, false, nil
	}
	if expired(te.schema, rec.Value, time.Now().UnixMilli()) {
		return nil, false, nil
	}
	return rec.Value, true, nil
}

func (e *Engine) lookup(stripe int, phys types.Key) (types.Record, bool, error) {
	st := e.stripes[stripe]
	ek := types.EncodedKey(phys.Encode())

	if rec, ok := st.mem.Get(ek); ok {
		return *rec, true, nil
	}

	st.mu.RLock()
	readers := append([]*sstable.Reader(nil), st.sstReaders...)
	st.mu.RUnlock()
	for _, r := range readers {
		rec, ok, err := r.Get(ek)
		if err != nil {
			return types.Record{}, false, err
		}
		if ok {
			return rec, true, nil
		}
	}
	return types.Record{}, false, nil
}

// Delete removes tableName's row for key (writing a tombstone), honoring
// an optional condition expression the same way Put does.
func (e *Engine) Delete(tableName string, key types.Key, conditionExpr string, ctx expr.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.deleteLocked(tableName, key, conditionExpr, ctx)
}

// deleteLocked is Delete's body, callable by holders of writeMu
// (TransactWrite) without re-acquiring it.
func (e *Engine) deleteLocked(tableName string, key types.Key, conditionExpr string, ctx expr.Context) error {
	te, err := e.table(tableName)
	if err != nil {
		return err
	}
	current, found, err := e.Get(tableName, key)
	if err != nil {
		return err
	}
	if conditionExpr != "" {
		if err := checkCondition(conditionExpr, current, found, ctx); err != nil {
			return err
		}
	}
	if !found {
		return nil
	}

	seq := e.seq.Next()
	phys := types.Key{PK: physicalPK(te.id, key.PK), SK: key.SK}
	stripe := types.Stripe(key.PK)
	if err := e.putRecord(stripe, phys, seq, nil); err != nil {
		return err
	}

	for _, idxRec := range buildIndexRecords(te.schema, current, key) {
		idxPhys := types.Key{PK: physicalPK(te.id, idxRec.key.PK)}
		if err := e.putRecord(idxRec.stripe, idxPhys, seq, nil); err != nil {
			return err
		}
	}

	e.emitStreamEvent(tableName, StreamEvent{Seq: seq, Type: StreamRemove, TableName: tableName, Key: key, OldImage: current})
	return nil
}

// Update applies an update expression (SET/REMOVE/ADD/DELETE, §4.6) to
// tableName's row for key, optionally gated by a condition expression, and
// returns the resulting item.
func (e *Engine) Update(tableName string, key types.Key, updateExprText, conditionExpr string, ctx expr.Context) (types.Item, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	current, found, err := e.Get(tableName, key)
	if err != nil {
		return nil, err
	}
	if conditionExpr != "" {
		if err := checkCondition(conditionExpr, current, found, ctx); err != nil {
			return nil, err
		}
	}

	base := current
	if !found {
		base = types.Item{}
	}
	upd, err := expr.ParseUpdate(updateExprText)
	if err != nil {
		return nil, err
	}
	next, err := expr.Apply(upd, base, ctx)
	if err != nil {
		return nil, err
	}

	if err := e.putLocked(tableName, next, "", expr.Context{}); err != nil {
		return nil, err
	}
	return next, nil
}

func checkCondition(conditionExpr string, item types.Item, found bool, ctx expr.Context) error {
	node, err := expr.ParseCondition(conditionExpr)
	if err != nil {
		return err
	}
	evalItem := item
	if !found {
		evalItem = types.Item{}
	}
	ok, err := expr.Eval(node, evalItem, ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ConditionalCheckFailed, "lsm: condition expression evaluated to false")
	}
	return nil
}

// Query evaluates a sort-key range/condition scan within one partition key
// (§4.5), against the table's base rows or, when indexName is non-empty, a
// named LSI/GSI.
func (e *Engine) Query(tableName, indexName string, pkValue types.Value, cond *query.ScanCondition, page query.Page) (query.Result, error) {
	te, err := e.table(tableName)
	if err != nil {
		return query.Result{}, err
	}
	schema := te.schema

	pkBytes := scalarBytes(pkValue)
	stripe := types.Stripe(pkBytes)
	var prefix []byte
	if indexName == "" {
		prefix = physicalPK(te.id, pkBytes)
	} else {
		idx, ok := schema.indexByName(indexName)
		if !ok {
			return query.Result{}, &errors.IndexNotFoundError{Name: indexName}
		}
		if idx.Kind == GlobalSecondaryIndex {
			stripe = types.Stripe(pkBytes)
		}
		prefix = physicalPK(te.id, types.EncodeIndexPK(indexName, pkBytes, nil))
		prefix = prefix[:len(prefix)-4] // drop EncodeIndexPK's trailing empty-sk length word to match any sk
	}

	all := e.collectStripe(stripe)
	now := time.Now().UnixMilli()
	var matches []*types.Record
	for _, rec := range all {
		if !hasPrefix(rec.Key.PK, prefix) || indexName == "" && len(rec.Key.PK) != len(prefix) {
			continue
		}
		if rec.IsTombstone() || expired(schema, rec.Value, now) {
			continue
		}
		if cond != nil {
			skBytes := recordSK(indexName, rec)
			if skBytes == nil || !cond.Matches(types.EncodedKey(skBytes)) {
				continue
			}
		}
		matches = append(matches, rec)
	}
	return paginate(matches, page), nil
}

// recordSK returns the sort-key bytes a Query filter should compare
// against: the physical Key's SK for a base-table query, or the sort key
// embedded in the synthetic index pk (§3's 0xFF encoding) for an index
// query, since index rows carry their sort key inside the pk rather than
// as a separate SK component.
func recordSK(indexName string, rec *types.Record) []byte {
	if indexName == "" {
		return rec.Key.SK
	}
	if len(rec.Key.PK) < 2 {
		return nil
	}
	_, _, sk, ok := types.DecodeIndexPK(rec.Key.PK[2:])
	if !ok {
		return nil
	}
	return sk
}

func hasPrefix(b, prefix []byte) bool {
	if len(prefix) > len(b) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Scan returns every base row in tableName (ignoring partition boundaries),
// applying cond as a filter and page for pagination (§4.5).
func (e *Engine) Scan(tableName string, cond *query.ScanCondition, page query.Page) (query.Result, error) {
	te, err := e.table(tableName)
	if err != nil {
		return query.Result{}, err
	}
	var all []*types.Record
	for stripe := 0; stripe < types.StripeCount; stripe++ {
		all = append(all, e.collectStripe(stripe)...)
	}
	prefix := make([]byte, 2)
	binary.BigEndian.PutUint16(prefix, te.id)

	now := time.Now().UnixMilli()
	var matches []*types.Record
	for _, rec := range all {
		if !hasPrefix(rec.Key.PK, prefix) || len(rec.Key.PK) >= 3 && rec.Key.PK[2] == types.IndexKeyPrefix {
			continue
		}
		if rec.IsTombstone() || expired(te.schema, rec.Value, now) {
			continue
		}
		if cond != nil && !cond.Matches(types.EncodedKey(rec.Key.SK)) {
			continue
		}
		matches = append(matches, rec)
	}
	return paginate(matches, page), nil
}

func paginate(matches []*types.Record, page query.Page) query.Result {
	sortRecordsByKey(matches)
	if page.Descending {
		reverseRecords(matches)
	}
	start := 0
	if page.ExclusiveStartKey != nil {
		for i, rec := range matches {
			cmp := types.EncodedKey(rec.Key.Encode()).Compare(page.ExclusiveStartKey)
			if page.Descending {
				cmp = -cmp
			}
			if cmp > 0 {
				start = i
				break
			}
			start = i + 1
		}
	}
	end := len(matches)
	if page.Limit > 0 && start+page.Limit < end {
		end = start + page.Limit
	}
	result := query.Result{}
	for _, rec := range matches[start:end] {
		result.Records = append(result.Records, rec)
	}
	if end < len(matches) {
		result.LastEvaluatedKey = types.EncodedKey(matches[end-1].Key.Encode())
	}
	return result
}

func reverseRecords(recs []*types.Record) {
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
}

func (e *Engine) collectStripe(stripe int) []*types.Record {
	st := e.stripes[stripe]
	memRecs := memtableRecords(st.mem)

	st.mu.RLock()
	readers := append([]*sstable.Reader(nil), st.sstReaders...)
	st.mu.RUnlock()

	sources := [][]*types.Record{memRecs}
	for _, r := range readers {
		recs, err := r.ScanAll()
		if err != nil {
			continue
		}
		ptrs := make([]*types.Record, len(recs))
		for i := range recs {
			rc := recs[i]
			ptrs[i] = &rc
		}
		sources = append(sources, ptrs)
	}
	return mergeRecordStreams(sources...)
}
