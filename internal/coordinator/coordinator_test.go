package coordinator

import (
	"testing"

	"ringkeep/internal/nodestate"
	"ringkeep/internal/wire"
)

func TestQuorumAdditional(t *testing.T) {
	cases := map[int]int{1: 0, 2: 1, 3: 1, 5: 2}
	for n, want := range cases {
		if got := quorumAdditional(n); got != want {
			t.Errorf("quorumAdditional(%d) = %d, want %d", n, got, want)
		}
	}
}

func newSingleNodeCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	self := "127.0.0.1:9042"
	state := nodestate.New(self, t.TempDir(), "AEROLINEA", 1)
	if _, err := state.Ensure("AEROLINEA", 1); err != nil {
		t.Fatalf("ensure keyspace: %v", err)
	}
	return New(Config{Self: self, InterNodePort: "9043"}, state)
}

func TestDispatchCreateTableAndInsertSelect(t *testing.T) {
	c := newSingleNodeCoordinator(t)

	if _, _, err := c.Dispatch(`CREATE TABLE VUELO (ORIGEN, DESTINO, ID_VUELO, PRIMARY KEY ((ORIGEN)))`, wire.Weak); err != nil {
		t.Fatalf("create table: %v", err)
	}

	if _, _, err := c.Dispatch(`INSERT INTO VUELO (ORIGEN, DESTINO, ID_VUELO) VALUES ('EZE', 'COR', '100')`, wire.Strong); err != nil {
		t.Fatalf("insert: %v", err)
	}

	kind, rows, err := c.Dispatch(`SELECT * FROM VUELO WHERE ORIGEN = 'EZE'`, wire.Strong)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if kind != wire.ResultRows || len(rows) != 1 {
		t.Fatalf("expected 1 row, got kind=%v rows=%v", kind, rows)
	}
	if string(rows[0][1]) != "COR" {
		t.Fatalf("expected DESTINO=COR, got %q", rows[0][1])
	}
}

func TestDispatchSelectBroadcastNoWhere(t *testing.T) {
	c := newSingleNodeCoordinator(t)
	if _, _, err := c.Dispatch(`CREATE TABLE VUELO (ORIGEN, DESTINO, ID_VUELO, PRIMARY KEY ((ORIGEN)))`, wire.Weak); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, _, err := c.Dispatch(`INSERT INTO VUELO (ORIGEN, DESTINO, ID_VUELO) VALUES ('EZE', 'COR', '100')`, wire.Weak); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := c.Dispatch(`INSERT INTO VUELO (ORIGEN, DESTINO, ID_VUELO) VALUES ('AEP', 'MDZ', '200')`, wire.Weak); err != nil {
		t.Fatalf("insert 2: %v", err)
	}

	kind, rows, err := c.Dispatch(`SELECT * FROM VUELO`, wire.Weak)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if kind != wire.ResultRows || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got kind=%v rows=%v", kind, rows)
	}
}

func TestDispatchUpdateAndDelete(t *testing.T) {
	c := newSingleNodeCoordinator(t)
	if _, _, err := c.Dispatch(`CREATE TABLE VUELO (ORIGEN, DESTINO, ID_VUELO, PRIMARY KEY ((ORIGEN)))`, wire.Weak); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, _, err := c.Dispatch(`INSERT INTO VUELO (ORIGEN, DESTINO, ID_VUELO) VALUES ('EZE', 'COR', '100')`, wire.Weak); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := c.Dispatch(`UPDATE VUELO SET DESTINO = 'BUE' WHERE ORIGEN = 'EZE' AND ID_VUELO = '100'`, wire.Strong); err != nil {
		t.Fatalf("update: %v", err)
	}
	_, rows, err := c.Dispatch(`SELECT * FROM VUELO WHERE ORIGEN = 'EZE'`, wire.Weak)
	if err != nil {
		t.Fatalf("select after update: %v", err)
	}
	if len(rows) != 1 || string(rows[0][1]) != "BUE" {
		t.Fatalf("expected DESTINO=BUE, got %v", rows)
	}

	if _, _, err := c.Dispatch(`DELETE FROM VUELO WHERE ORIGEN = 'EZE' AND ID_VUELO = '100'`, wire.Strong); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, rows, err = c.Dispatch(`SELECT * FROM VUELO WHERE ORIGEN = 'EZE'`, wire.Weak)
	if err != nil {
		t.Fatalf("select after delete: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows after delete, got %v", rows)
	}
}
