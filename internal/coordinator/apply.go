package coordinator

import (
	"strings"

	"ringkeep/internal/cql"
	"ringkeep/internal/ringerr"
	"ringkeep/internal/store"
)

// buildRow renders one CSV row in header order from an INSERT's column and
// value lists, which may arrive in any order (per spec §4.2's column-list
// syntax).
func buildRow(headers, columns, values []string) (string, error) {
	if len(columns) != len(values) {
		return "", ringerr.New(ringerr.KindQuerySyntax, "coordinator.buildRow: column/value arity")
	}
	fields := make([]string, len(headers))
	set := make([]bool, len(headers))
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[h] = i
	}
	for i, col := range columns {
		hi, ok := index[col]
		if !ok {
			return "", ringerr.New(ringerr.KindQuerySyntax, "coordinator.buildRow: unknown column "+col)
		}
		fields[hi] = values[i]
		set[hi] = true
	}
	for i, ok := range set {
		if !ok {
			return "", ringerr.New(ringerr.KindQuerySyntax, "coordinator.buildRow: missing column "+headers[i])
		}
	}
	return strings.Join(fields, ","), nil
}

// applyInsert applies an INSERT query against keyspace ks's table, returning
// whether it inserted a new row.
func applyInsert(ks *store.Keyspace, q *cql.Query) (bool, error) {
	tbl, err := ks.Table(q.Table)
	if err != nil {
		return false, err
	}
	row, err := buildRow(tbl.Headers, q.Columns, q.Values)
	if err != nil {
		return false, err
	}
	return tbl.InsertAndPersist(row)
}

func assignmentMap(assignments []cql.Assignment) map[string]string {
	out := make(map[string]string, len(assignments))
	for _, a := range assignments {
		out[a.Column] = a.Value
	}
	return out
}

// applyUpdate applies an UPDATE query against keyspace ks's table.
func applyUpdate(ks *store.Keyspace, q *cql.Query) (bool, error) {
	tbl, err := ks.Table(q.Table)
	if err != nil {
		return false, err
	}
	return tbl.UpdateAndPersist(q.Where, assignmentMap(q.Assignments))
}

// applyDelete applies a DELETE query against keyspace ks's table.
func applyDelete(ks *store.Keyspace, q *cql.Query) (bool, error) {
	tbl, err := ks.Table(q.Table)
	if err != nil {
		return false, err
	}
	return tbl.DeleteAndPersist(q.Where)
}

// applyWrite dispatches an INSERT/UPDATE/DELETE to the matching apply
// function. Used both by the coordinator's owner-local path and by the
// replica package's role=replica handler.
func applyWrite(ks *store.Keyspace, q *cql.Query) (bool, error) {
	switch q.Kind {
	case cql.Insert:
		return applyInsert(ks, q)
	case cql.Update:
		return applyUpdate(ks, q)
	case cql.Delete:
		return applyDelete(ks, q)
	default:
		return false, ringerr.New(ringerr.KindQuerySyntax, "coordinator.applyWrite: not a write")
	}
}

// ApplyWrite exports applyWrite for the replica package's role=replica
// handler, so both packages share one INSERT/UPDATE/DELETE implementation
// instead of keeping parallel copies of the column-reordering logic.
func ApplyWrite(ks *store.Keyspace, q *cql.Query) (bool, error) {
	return applyWrite(ks, q)
}

