package cql

import "testing"

func TestParseInsert(t *testing.T) {
	q, err := Parse("INSERT INTO VUELO (ORIGEN, ID_VUELO, DESTINO) VALUES ('EZE', 100, 'COR')")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Kind != Insert || q.Table != "VUELO" {
		t.Fatalf("got kind=%v table=%q", q.Kind, q.Table)
	}
	if len(q.Columns) != 3 || q.Columns[1] != "ID_VUELO" {
		t.Fatalf("columns=%v", q.Columns)
	}
	if len(q.Values) != 3 || q.Values[0] != "EZE" || q.Values[1] != "100" {
		t.Fatalf("values=%v", q.Values)
	}
}

func TestParseSelectWithTwoConditions(t *testing.T) {
	q, err := Parse("SELECT ORIGEN, ID_VUELO FROM VUELO WHERE ORIGEN = 'EZE' AND ID_VUELO > 50")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Kind != Select || q.Table != "VUELO" {
		t.Fatalf("got %+v", q)
	}
	if len(q.Columns) != 2 {
		t.Fatalf("columns=%v", q.Columns)
	}
	if q.Where.Cond1 == nil || q.Where.Cond1.Column != "ORIGEN" || q.Where.Cond1.Value != "EZE" {
		t.Fatalf("cond1=%+v", q.Where.Cond1)
	}
	if q.Where.Cond2 == nil || q.Where.Cond2.Op != ">" || q.Where.Cond2.Value != "50" {
		t.Fatalf("cond2=%+v", q.Where.Cond2)
	}
}

func TestParseSelectSingleConditionValueContainingAND(t *testing.T) {
	q, err := Parse("SELECT * FROM AEROPUERTO WHERE NOMBRE = 'ORLANDO'")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Where.Cond1 == nil || q.Where.Cond1.Value != "ORLANDO" {
		t.Fatalf("cond1=%+v", q.Where.Cond1)
	}
	if q.Where.Cond2 != nil {
		t.Fatalf("expected single condition, got cond2=%+v", q.Where.Cond2)
	}
}

func TestParseSelectStar(t *testing.T) {
	q, err := Parse("SELECT * FROM VUELO")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(q.Columns) != 1 || q.Columns[0] != "*" {
		t.Fatalf("columns=%v", q.Columns)
	}
	if q.Where.Cond1 != nil {
		t.Fatalf("expected no WHERE, got %+v", q.Where)
	}
}

func TestParseUpdate(t *testing.T) {
	q, err := Parse("UPDATE VUELO SET DESTINO = 'BRC' WHERE ORIGEN = 'EZE' AND ID_VUELO = 100")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Kind != Update || len(q.Assignments) != 1 || q.Assignments[0].Column != "DESTINO" {
		t.Fatalf("got %+v", q)
	}
	if q.Where.Cond2 == nil || q.Where.Cond2.Value != "100" {
		t.Fatalf("cond2=%+v", q.Where.Cond2)
	}
}

func TestParseDelete(t *testing.T) {
	q, err := Parse("DELETE FROM VUELO WHERE ORIGEN = 'EZE' AND ID_VUELO = 100")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Kind != Delete || q.Table != "VUELO" {
		t.Fatalf("got %+v", q)
	}
}

func TestParseCreateTablePromotesPrimaryKey(t *testing.T) {
	q, err := Parse("CREATE TABLE VUELO (ORIGEN TEXT, DESTINO TEXT, ID_VUELO INT, PRIMARY KEY ((ORIGEN), ID_VUELO))")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Only the partition key is promoted; every other declared column,
	// including the clustering column named in PRIMARY KEY, keeps its
	// declared order — ID_VUELO stays at index 2, per spec §4.3/§3.
	want := []string{"ORIGEN", "DESTINO", "ID_VUELO"}
	if q.Kind != CreateTable || len(q.Headers) != len(want) {
		t.Fatalf("headers=%v", q.Headers)
	}
	for i, h := range want {
		if q.Headers[i] != h {
			t.Fatalf("headers=%v, want %v", q.Headers, want)
		}
	}
}

func TestParseCreateKeyspace(t *testing.T) {
	q, err := Parse("CREATE KEYSPACE AEROLINEA WITH replication = {'class':'SimpleStrategy','replication_factor':3}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if q.Kind != CreateKeyspace || q.Keyspace != "AEROLINEA" || q.ReplicationFactor != 3 {
		t.Fatalf("got %+v", q)
	}
}

func TestParseCreateKeyspaceRejectsUnsupportedStrategy(t *testing.T) {
	_, err := Parse("CREATE KEYSPACE AEROLINEA WITH replication = {'class':'NetworkTopologyStrategy','replication_factor':3}")
	if err == nil {
		t.Fatal("expected UnsupportedStrategy error")
	}
}

func TestParseUnsupportedVerb(t *testing.T) {
	_, err := Parse("MERGE FROM VUELO WHERE ORIGEN = 'EZE'")
	if err == nil {
		t.Fatal("expected QuerySyntax error")
	}
}
