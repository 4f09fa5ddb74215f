// Package cql parses the query language surface this system accepts: a
// single CQL-like statement per call, covering CREATE KEYSPACE, CREATE
// TABLE, INSERT, SELECT, UPDATE and DELETE. Grounded on
// original_source/tpgrupal/protocolo/src/parser_cql/parseo_consulta.rs,
// translated from its split-on-keyword approach into Go string scanning.
package cql

import (
	"strconv"
	"strings"

	"ringkeep/internal/ringerr"
	"ringkeep/internal/store"
)

// Kind identifies which statement a Query was parsed from.
type Kind int

const (
	CreateKeyspace Kind = iota
	CreateTable
	Insert
	Select
	Update
	Delete
)

func (k Kind) String() string {
	switch k {
	case CreateKeyspace:
		return "CreateKeyspace"
	case CreateTable:
		return "CreateTable"
	case Insert:
		return "Insert"
	case Select:
		return "Select"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Query is the parsed form of one statement. Fields not relevant to Kind
// are left zero-valued, per spec §4.2.
type Query struct {
	Raw   string
	Kind  Kind
	Table string

	Keyspace            string
	ReplicationStrategy string
	ReplicationFactor   int

	Headers []string // CREATE TABLE column order, primary key promoted to index 0

	Columns []string // INSERT column list, or SELECT projection ("*" as single entry)
	Values  []string // INSERT value list, aligned with Columns

	Assignments []Assignment // UPDATE SET list, in textual order

	Where store.WhereClause
}

// Assignment is one "column = value" pair from an UPDATE's SET list.
type Assignment struct {
	Column string
	Value  string
}

// Parse dispatches on the statement's leading verb.
func Parse(raw string) (*Query, error) {
	trimmed := strings.TrimSpace(raw)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.Parse: empty query")
	}

	switch strings.ToUpper(fields[0]) {
	case "SELECT":
		return parseSelect(trimmed)
	case "INSERT":
		return parseInsert(trimmed)
	case "UPDATE":
		return parseUpdate(trimmed)
	case "DELETE":
		return parseDelete(trimmed)
	case "CREATE":
		if len(fields) < 2 {
			return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.Parse: incomplete CREATE")
		}
		switch strings.ToUpper(fields[1]) {
		case "TABLE":
			return parseCreateTable(trimmed)
		case "KEYSPACE":
			return parseCreateKeyspace(trimmed)
		default:
			return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.Parse: unsupported CREATE")
		}
	default:
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.Parse: unsupported verb")
	}
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}

// parseCondition splits "COLUMN OP VALUE" on the first operator found,
// trying the two-character operators before the single-character ones so
// "<=" and ">=" aren't misread as "<"/">".
func parseCondition(cond string) (store.Where, error) {
	cond = strings.TrimSpace(cond)
	for _, op := range []string{"<=", ">=", "=", "<", ">"} {
		idx := strings.Index(cond, op)
		if idx < 0 {
			continue
		}
		col := strings.TrimSpace(cond[:idx])
		val := stripQuotes(cond[idx+len(op):])
		if col == "" {
			continue
		}
		return store.Where{Column: col, Op: op, Value: val}, nil
	}
	return store.Where{}, ringerr.New(ringerr.KindQuerySyntax, "cql.parseCondition")
}

// parseWhere splits on WHERE/AND per the original's split-on-keyword
// approach; returns a zero WhereClause if there is no WHERE at all.
func parseWhere(afterWhereVerbOnward string) (store.WhereClause, error) {
	idx := strings.Index(strings.ToUpper(afterWhereVerbOnward), "WHERE")
	if idx < 0 {
		return store.WhereClause{}, nil
	}
	rest := afterWhereVerbOnward[idx+len("WHERE"):]

	// Split on the whitespace-delimited " AND " token, not a bare
	// substring match: a condition value like NOMBRE = 'ORLANDO' contains
	// "AND" with no surrounding space and must not be mistaken for the
	// clause separator.
	andIdx := strings.Index(strings.ToUpper(rest), " AND ")
	var cond1Str, cond2Str string
	if andIdx >= 0 {
		cond1Str = rest[:andIdx]
		cond2Str = rest[andIdx+len(" AND "):]
	} else {
		cond1Str = rest
	}

	cond1, err := parseCondition(cond1Str)
	if err != nil {
		return store.WhereClause{}, err
	}
	clause := store.WhereClause{Cond1: &cond1}
	if cond2Str != "" {
		cond2, err := parseCondition(cond2Str)
		if err != nil {
			return store.WhereClause{}, err
		}
		clause.Cond2 = &cond2
	}
	return clause, nil
}

func parseSelect(raw string) (*Query, error) {
	fields := strings.Fields(raw)
	fromIdx := -1
	for i, f := range fields {
		if strings.ToUpper(f) == "FROM" {
			fromIdx = i
			break
		}
	}
	if fromIdx < 0 || fromIdx+1 >= len(fields) {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseSelect: missing FROM")
	}
	table := fields[fromIdx+1]

	columnsText := strings.Join(fields[1:fromIdx], " ")
	columns := splitColumnList(columnsText)

	where, err := parseWhere(raw)
	if err != nil {
		return nil, err
	}

	return &Query{
		Raw:     raw,
		Kind:    Select,
		Table:   table,
		Columns: columns,
		Where:   where,
	}, nil
}

func parseInsert(raw string) (*Query, error) {
	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseInsert: truncated")
	}
	table := fields[2]

	open := strings.Index(raw, "(")
	close := strings.Index(raw, ")")
	if open < 0 || close < 0 || close < open {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseInsert: missing column list")
	}
	columns := splitColumnList(raw[open+1 : close])

	valuesIdx := strings.Index(strings.ToUpper(raw), "VALUES")
	if valuesIdx < 0 {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseInsert: missing VALUES")
	}
	rest := raw[valuesIdx+len("VALUES"):]
	vOpen := strings.Index(rest, "(")
	vClose := strings.LastIndex(rest, ")")
	if vOpen < 0 || vClose < 0 || vClose < vOpen {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseInsert: missing value list")
	}
	values := splitValueList(rest[vOpen+1 : vClose])

	if len(columns) != len(values) {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseInsert: column/value arity mismatch")
	}

	return &Query{
		Raw:     raw,
		Kind:    Insert,
		Table:   table,
		Columns: columns,
		Values:  values,
	}, nil
}

func parseUpdate(raw string) (*Query, error) {
	upper := strings.ToUpper(raw)
	whereIdx := strings.Index(upper, "WHERE")
	head := raw
	if whereIdx >= 0 {
		head = raw[:whereIdx]
	}
	fields := strings.Fields(head)
	if len(fields) < 4 || strings.ToUpper(fields[2]) != "SET" {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseUpdate: malformed")
	}
	table := fields[1]
	setText := strings.Join(fields[3:], " ")

	var assignments []Assignment
	for _, pair := range strings.Split(setText, ",") {
		eq := strings.Index(pair, "=")
		if eq < 0 {
			return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseUpdate: bad assignment")
		}
		col := strings.TrimSpace(pair[:eq])
		val := stripQuotes(pair[eq+1:])
		assignments = append(assignments, Assignment{Column: col, Value: val})
	}

	where, err := parseWhere(raw)
	if err != nil {
		return nil, err
	}

	return &Query{
		Raw:         raw,
		Kind:        Update,
		Table:       table,
		Assignments: assignments,
		Where:       where,
	}, nil
}

func parseDelete(raw string) (*Query, error) {
	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseDelete: truncated")
	}
	table := fields[2]

	where, err := parseWhere(raw)
	if err != nil {
		return nil, err
	}

	return &Query{
		Raw:   raw,
		Kind:  Delete,
		Table: table,
		Where: where,
	}, nil
}

func parseCreateTable(raw string) (*Query, error) {
	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseCreateTable: truncated")
	}
	table := fields[2]

	open := strings.Index(raw, "(")
	close := strings.LastIndex(raw, ")")
	if open < 0 || close < 0 || close < open {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseCreateTable: missing column definitions")
	}
	headers, err := columnHeaders(raw[open+1 : close])
	if err != nil {
		return nil, err
	}

	return &Query{
		Raw:     raw,
		Kind:    CreateTable,
		Table:   table,
		Headers: headers,
	}, nil
}

// columnHeaders extracts the header list from a CREATE TABLE column
// definition body, promoting the primary-key column(s) to the front, per
// spec §4.2 and the original's obtener_headers_table/mover_al_inicio.
func columnHeaders(body string) ([]string, error) {
	var plain []string
	var primaryKey []string

	pkIdx := strings.Index(strings.ToUpper(body), "PRIMARY KEY")
	plainPart := body
	pkPart := ""
	if pkIdx >= 0 {
		plainPart = body[:pkIdx]
		pkPart = strings.TrimSpace(body[pkIdx:])
	}

	for _, field := range strings.Split(plainPart, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		name := strings.Fields(field)
		if len(name) == 0 {
			continue
		}
		plain = append(plain, name[0])
	}

	if pkPart != "" {
		open := strings.Index(pkPart, "((")
		if open < 0 || len(pkPart) == 0 {
			return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.columnHeaders: bad PRIMARY KEY clause")
		}
		inner := pkPart[open+2:]
		inner = strings.TrimSuffix(strings.TrimSpace(inner), ")")
		for _, pk := range strings.Split(inner, ",") {
			pk = strings.NewReplacer("(", "", ")", "").Replace(pk)
			primaryKey = append(primaryKey, strings.TrimSpace(pk))
		}
	}

	if len(primaryKey) == 0 {
		return plain, nil
	}

	out := make([]string, 0, len(plain))
	seen := make(map[string]bool)
	// Only the partition-key column (the one inside the inner parens of
	// "PRIMARY KEY ((pk), ck)") is promoted to index 0. Every other
	// column, including any clustering columns named in the PRIMARY KEY
	// clause, keeps its declared order.
	pk := primaryKey[0]
	out = append(out, pk)
	seen[pk] = true
	for _, c := range plain {
		if !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	return out, nil
}

func parseCreateKeyspace(raw string) (*Query, error) {
	fields := strings.Fields(raw)
	if len(fields) < 3 {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseCreateKeyspace: truncated")
	}
	name := fields[2]

	open := strings.Index(raw, "{")
	close := strings.Index(raw, "}")
	if open < 0 || close < 0 || close < open {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseCreateKeyspace: missing replication map")
	}
	body := raw[open+1 : close]
	parts := strings.Split(body, ",")
	if len(parts) != 2 {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseCreateKeyspace: malformed replication map")
	}

	classKV := strings.SplitN(parts[0], ":", 2)
	factorKV := strings.SplitN(parts[1], ":", 2)
	if len(classKV) != 2 || len(factorKV) != 2 {
		return nil, ringerr.New(ringerr.KindQuerySyntax, "cql.parseCreateKeyspace: malformed replication entries")
	}

	strategy := strings.Trim(strings.TrimSpace(classKV[1]), "'")
	factorStr := strings.Trim(strings.TrimSpace(factorKV[1]), "'")
	factor, err := strconv.Atoi(factorStr)
	if err != nil {
		return nil, ringerr.Wrap(ringerr.KindQuerySyntax, "cql.parseCreateKeyspace: replication_factor", err)
	}
	if strategy != "SimpleStrategy" {
		return nil, ringerr.New(ringerr.KindUnsupportedStrategy, "cql.parseCreateKeyspace")
	}

	return &Query{
		Raw:                 raw,
		Kind:                CreateKeyspace,
		Keyspace:            name,
		ReplicationStrategy: "SimpleStrategy",
		ReplicationFactor:   factor,
	}, nil
}

func splitColumnList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "*" {
		return []string{"*"}
	}
	var out []string
	for _, c := range strings.Split(s, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func splitValueList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		out = append(out, stripQuotes(v))
	}
	return out
}
