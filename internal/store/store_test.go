package store

import (
	"os"
	"testing"
)

// newTestTable builds a VUELO table with ID_VUELO at header index 2, the
// layout spec.md's clustering-index rule assumes for text-keyed
// (flight-shaped) tables: ORIGEN is the partition key at index 0, DESTINO
// at index 1, ID_VUELO — the clustering column delete/update pin on — at
// index 2.
func newTestTable(t *testing.T) (*Table, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "ringkeep-store-*")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	tbl := NewTable(dir, "AEROLINEA", "VUELO", []string{"ORIGEN", "DESTINO", "ID_VUELO"}, "127.0.0.1:9042", false)
	return tbl, dir
}

func TestInsertNoDuplicate(t *testing.T) {
	tbl, _ := newTestTable(t)
	ok, err := tbl.InsertAndPersist("EZE,COR,100")
	if err != nil || !ok {
		t.Fatalf("first insert: ok=%v err=%v", ok, err)
	}
	ok, err = tbl.InsertAndPersist("EZE,COR,100")
	if err != nil || ok {
		t.Fatalf("duplicate insert should be rejected: ok=%v err=%v", ok, err)
	}
	rows := tbl.AllRows()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %v", rows)
	}
}

func TestSelectProjectionAndWhere(t *testing.T) {
	tbl, _ := newTestTable(t)
	tbl.Insert("EZE,COR,100")
	tbl.Insert("EZE,MDQ,101")
	tbl.Insert("AEP,BRC,200")

	got := tbl.Select(WhereClause{Cond1: &Where{Column: "ORIGEN", Op: "=", Value: "EZE"}}, []string{"DESTINO", "ID_VUELO"})
	if len(got) != 2 {
		t.Fatalf("expected 2 rows for EZE, got %v", got)
	}
	for _, row := range got {
		if row != "COR,100" && row != "MDQ,101" {
			t.Fatalf("unexpected projected row %q", row)
		}
	}
}

func TestSelectNumericComparison(t *testing.T) {
	tbl, _ := newTestTable(t)
	tbl.Insert("EZE,COR,100")
	tbl.Insert("EZE,MDQ,200")

	got := tbl.Select(WhereClause{Cond1: &Where{Column: "ID_VUELO", Op: ">", Value: "150"}}, []string{"*"})
	if len(got) != 1 || got[0] != "EZE,MDQ,200" {
		t.Fatalf("got %v", got)
	}
}

func TestDeleteUsesClusteringIndex(t *testing.T) {
	tbl, _ := newTestTable(t)
	tbl.Insert("EZE,COR,100")
	tbl.Insert("EZE,MDQ,101")

	ok, err := tbl.DeleteAndPersist(WhereClause{
		Cond1: &Where{Column: "ORIGEN", Op: "=", Value: "EZE"},
		Cond2: &Where{Column: "ID_VUELO", Op: "=", Value: "100"},
	})
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	rows := tbl.AllRows()
	if len(rows) != 1 || rows[0] != "EZE,MDQ,101" {
		t.Fatalf("got %v", rows)
	}
}

func TestUpdateAssignsColumn(t *testing.T) {
	tbl, _ := newTestTable(t)
	tbl.Insert("EZE,COR,100")

	ok, err := tbl.UpdateAndPersist(WhereClause{
		Cond1: &Where{Column: "ORIGEN", Op: "=", Value: "EZE"},
		Cond2: &Where{Column: "ID_VUELO", Op: "=", Value: "100"},
	}, map[string]string{"DESTINO": "BRC"})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	rows := tbl.AllRows()
	if len(rows) != 1 || rows[0] != "EZE,BRC,100" {
		t.Fatalf("got %v", rows)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	tbl, dir := newTestTable(t)
	tbl.InsertAndPersist("EZE,COR,100")
	tbl.InsertAndPersist("AEP,BRC,200")

	reloaded := NewTable(dir, "AEROLINEA", "VUELO", []string{"ORIGEN", "DESTINO", "ID_VUELO"}, "127.0.0.1:9042", false)
	if err := reloaded.LoadFromDisk(); err != nil {
		t.Fatalf("load: %v", err)
	}
	rows := reloaded.AllRows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 persisted rows, got %v", rows)
	}
}

func TestClusteringIndexNumericVsText(t *testing.T) {
	if clusteringIndex("100") != 1 {
		t.Fatal("expected numeric partition key -> index 1")
	}
	if clusteringIndex("EZE") != 2 {
		t.Fatal("expected text partition key -> index 2")
	}
}

func TestIsStatic(t *testing.T) {
	if !IsStatic("AEROPUERTOS") {
		t.Fatal("expected AEROPUERTOS to be static")
	}
	if IsStatic("VUELO") {
		t.Fatal("did not expect VUELO to be static")
	}
}

func TestRegistryKeyspaceLifecycle(t *testing.T) {
	reg := NewRegistry(t.TempDir(), "127.0.0.1:9042")
	if _, err := reg.Keyspace("AEROLINEA"); err == nil {
		t.Fatal("expected KeyspaceNotFound before creation")
	}
	if _, err := reg.CreateKeyspace("AEROLINEA", 3); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := reg.CreateKeyspace("AEROLINEA", 3); err == nil {
		t.Fatal("expected duplicate create to fail")
	}
	ks, err := reg.Keyspace("AEROLINEA")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := ks.CreateTable("VUELO", []string{"ORIGEN", "DESTINO", "ID_VUELO"}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := ks.Table("VUELO"); err != nil {
		t.Fatalf("table lookup: %v", err)
	}
	if _, err := ks.Table("NOPE"); err == nil {
		t.Fatal("expected TableNotFound")
	}
}
