// Package store implements the ordered, partition-keyed table storage:
// an in-memory row map backed by a per-(keyspace,table,node) CSV file.
// Grounded on the teacher's internal/storage/leveldb.go for the overall
// storage-engine shape (constructor takes node identity + data dir, exposes
// CRUD behind a mutex, logs lifecycle events) and on
// original_source/tpgrupal/bdd/src/tabla.rs for the row-comparison and
// clustering-column rules this module is distilled from.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"ringkeep/internal/logging"
	"ringkeep/internal/ringerr"
)

var log = logging.For("store")

// Table is one (keyspace, table) pair's local shard: an ordered header
// list and a partition-key -> row-list map, durable via a CSV file.
type Table struct {
	mu sync.RWMutex

	Name    string
	Headers []string // column names; primary key column at index 0
	Static  bool      // exempt from join redistribution (e.g. "AEROPUERTOS")

	rows map[string][]string // partition key -> ordered row strings

	root        string // data root directory
	keyspace    string
	nodeAddress string
}

// NewTable creates an empty table. Headers must already have the primary
// key column promoted to index 0 (the parser does this at CREATE TABLE
// time).
func NewTable(root, keyspace, name string, headers []string, nodeAddress string, static bool) *Table {
	return &Table{
		Name:        name,
		Headers:     append([]string(nil), headers...),
		Static:      static,
		rows:        make(map[string][]string),
		root:        root,
		keyspace:    keyspace,
		nodeAddress: nodeAddress,
	}
}

// Path returns this table's on-disk CSV path:
// <root>/<keyspace>/<table>_<node_address>.csv
func (t *Table) Path() string {
	safeAddr := strings.NewReplacer(":", "_", "/", "_").Replace(t.nodeAddress)
	return filepath.Join(t.root, t.keyspace, t.Name+"_"+safeAddr+".csv")
}

func splitRow(row string) []string {
	return strings.Split(row, ",")
}

func joinRow(fields []string) string {
	return strings.Join(fields, ",")
}

// clusteringIndex returns the index used to pin a single row within a
// partition for delete/update: 1 if the partition key parses as an
// integer, else 2 — the two table shapes the system uses (flight tables
// keyed on text origin with ID_VUELO at index 2; airport-like tables keyed
// on integer ID with the clustering cell at index 1), per spec §4.3.
func clusteringIndex(partitionKey string) int {
	if _, err := strconv.ParseInt(partitionKey, 10, 64); err == nil {
		return 1
	}
	return 2
}

// ClusteringIndex exports clusteringIndex for callers outside the package
// that need to address a single row without going through Delete/Update
// directly — join redistribution building a forwarded DELETE query.
func ClusteringIndex(partitionKey string) int {
	return clusteringIndex(partitionKey)
}

// Insert appends row (header-ordered, comma-joined) to its partition unless
// an identical row string is already present there. It does not touch
// disk; InsertAndPersist appends the row to the CSV after Insert returns,
// outside the table lock.
func (t *Table) Insert(row string) (inserted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fields := splitRow(row)
	key := fields[0]
	for _, existing := range t.rows[key] {
		if existing == row {
			return false
		}
	}
	t.rows[key] = append(t.rows[key], row)
	return true
}

// Where is a single comparison: "<column> <op> <value>". Op is one of
// "=", "<", ">", "<=", ">=".
type Where struct {
	Column string
	Op     string
	Value  string
}

// WhereClause is up to two conditions joined by AND, per spec §4.2/§4.3.
type WhereClause struct {
	Cond1 *Where
	Cond2 *Where
}

// Delete removes the first row in the partition named by Cond1's value
// whose clustering-column cell equals Cond2's value.
func (t *Table) Delete(where WhereClause) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if where.Cond1 == nil || where.Cond2 == nil {
		return false
	}
	partitionKey := where.Cond1.Value
	idx := clusteringIndex(partitionKey)

	rows := t.rows[partitionKey]
	for i, row := range rows {
		fields := splitRow(row)
		if idx < len(fields) && fields[idx] == where.Cond2.Value {
			t.rows[partitionKey] = append(rows[:i], rows[i+1:]...)
			return true
		}
	}
	return false
}

// Update overwrites each assigned column of the targeted row in place.
// assignments maps column name to new value, already split by the caller
// (the CQL parser).
func (t *Table) Update(where WhereClause, assignments map[string]string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if where.Cond1 == nil || where.Cond2 == nil {
		return false
	}
	partitionKey := where.Cond1.Value
	idx := clusteringIndex(partitionKey)

	headerIndex := make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		headerIndex[h] = i
	}

	rows := t.rows[partitionKey]
	for i, row := range rows {
		fields := splitRow(row)
		if idx >= len(fields) || fields[idx] != where.Cond2.Value {
			continue
		}
		for col, val := range assignments {
			if ci, ok := headerIndex[col]; ok && ci < len(fields) {
				fields[ci] = val
			}
		}
		rows[i] = joinRow(fields)
		return true
	}
	return false
}

// Select scans every row, keeps those matching where (empty Cond1 means
// "match everything"), and projects by column indices resolved from
// projection (a parsed column list, "*" meaning all columns).
func (t *Table) Select(where WhereClause, projection []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cols := t.projectionIndices(projection)

	partitions := make([]string, 0, len(t.rows))
	for k := range t.rows {
		partitions = append(partitions, k)
	}
	sort.Strings(partitions) // deterministic iteration for tests/repro

	var out []string
	for _, pk := range partitions {
		for _, row := range t.rows[pk] {
			fields := splitRow(row)
			if !matches(fields, t.Headers, where) {
				continue
			}
			out = append(out, project(fields, cols))
		}
	}
	return out
}

func (t *Table) projectionIndices(projection []string) []int {
	if len(projection) == 1 && projection[0] == "*" {
		cols := make([]int, len(t.Headers))
		for i := range t.Headers {
			cols[i] = i
		}
		return cols
	}
	headerIndex := make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		headerIndex[h] = i
	}
	var cols []int
	for _, c := range projection {
		if i, ok := headerIndex[c]; ok {
			cols = append(cols, i)
		}
	}
	return cols
}

func project(fields []string, cols []int) string {
	out := make([]string, 0, len(cols))
	for _, i := range cols {
		if i < len(fields) {
			out = append(out, fields[i])
		}
	}
	return joinRow(out)
}

func matches(fields []string, headers []string, where WhereClause) bool {
	if where.Cond1 == nil {
		return true
	}
	if !evalCond(*where.Cond1, fields, headers) {
		return false
	}
	if where.Cond2 == nil {
		return true
	}
	return evalCond(*where.Cond2, fields, headers)
}

func evalCond(c Where, fields []string, headers []string) bool {
	idx := -1
	for i, h := range headers {
		if h == c.Column {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(fields) {
		return false
	}
	lhs := fields[idx]
	return compare(lhs, c.Op, c.Value)
}

// compare does numeric comparison when both sides parse as signed
// integers, else lexicographic string comparison, per spec §4.3.
func compare(lhs, op, rhs string) bool {
	li, lerr := strconv.ParseInt(lhs, 10, 64)
	ri, rerr := strconv.ParseInt(rhs, 10, 64)
	if lerr == nil && rerr == nil {
		switch op {
		case "=":
			return li == ri
		case "<":
			return li < ri
		case ">":
			return li > ri
		case "<=":
			return li <= ri
		case ">=":
			return li >= ri
		}
		return false
	}
	switch op {
	case "=":
		return lhs == rhs
	case "<":
		return lhs < rhs
	case ">":
		return lhs > rhs
	case "<=":
		return lhs <= rhs
	case ">=":
		return lhs >= rhs
	}
	return false
}

// AllRows returns every row string across every partition, for persistence
// rewrite and for join redistribution's table walk.
func (t *Table) AllRows() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	for _, rows := range t.rows {
		out = append(out, rows...)
	}
	return out
}

// Load replaces the in-memory rows from persisted CSV lines; LoadFromDisk
// calls it with the lines of this table's CSV file.
func (t *Table) Load(lines []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = make(map[string][]string)
	for _, line := range lines {
		if line == "" {
			continue
		}
		key := splitRow(line)[0]
		t.rows[key] = append(t.rows[key], line)
	}
}

// persistAppend appends one line to the CSV file without rewriting it.
func (t *Table) persistAppend(row string) error {
	if err := os.MkdirAll(filepath.Dir(t.Path()), 0o755); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.persistAppend", err)
	}
	f, err := os.OpenFile(t.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.persistAppend", err)
	}
	defer f.Close()
	if _, err := f.WriteString(row + "\n"); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.persistAppend", err)
	}
	return nil
}

// persistRewrite atomically rewrites the whole CSV file via temp-file +
// rename, per spec §4.3.
func (t *Table) persistRewrite() error {
	rows := t.AllRows()
	dir := filepath.Dir(t.Path())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.persistRewrite", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+t.Name+"-*")
	if err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.persistRewrite", err)
	}
	tmpPath := tmp.Name()
	for _, row := range rows {
		if _, err := tmp.WriteString(row + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.persistRewrite", err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.persistRewrite", err)
	}
	if err := os.Rename(tmpPath, t.Path()); err != nil {
		os.Remove(tmpPath)
		return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.persistRewrite", err)
	}
	return nil
}

// Truncate empties this table's own CSV file at Path() without touching
// the in-memory rows. Marking a peer Down does not call it, so no file is
// truncated when a peer goes Down.
func (t *Table) Truncate() error {
	if err := os.MkdirAll(filepath.Dir(t.Path()), 0o755); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.Truncate", err)
	}
	f, err := os.Create(t.Path())
	if err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.Truncate", err)
	}
	return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.Truncate", f.Close())
}

// InsertAndPersist does Insert then, if it changed anything, appends the
// row to disk.
func (t *Table) InsertAndPersist(row string) (bool, error) {
	if !t.Insert(row) {
		return false, nil
	}
	if err := t.persistAppend(row); err != nil {
		return true, err
	}
	return true, nil
}

// DeleteAndPersist does Delete then, if it changed anything, rewrites the
// CSV file.
func (t *Table) DeleteAndPersist(where WhereClause) (bool, error) {
	if !t.Delete(where) {
		return false, nil
	}
	if err := t.persistRewrite(); err != nil {
		return true, err
	}
	return true, nil
}

// UpdateAndPersist does Update then, if it changed anything, rewrites the
// CSV file.
func (t *Table) UpdateAndPersist(where WhereClause, assignments map[string]string) (bool, error) {
	if !t.Update(where, assignments) {
		return false, nil
	}
	if err := t.persistRewrite(); err != nil {
		return true, err
	}
	return true, nil
}

// LoadFromDisk populates the table from its CSV file, if present. Missing
// files are not an error (a brand new table has none yet).
func (t *Table) LoadFromDisk() error {
	data, err := os.ReadFile(t.Path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "store.Table.LoadFromDisk", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		lines = nil
	}
	t.Load(lines)
	log.WithField("table", t.Name).WithField("rows", len(lines)).Debug("loaded table from disk")
	return nil
}
