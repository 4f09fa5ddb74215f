package gossip

import "testing"

func TestBuildInsertQuery(t *testing.T) {
	q := buildInsertQuery("VUELO", []string{"ORIGEN", "DESTINO", "ID_VUELO"}, []string{"EZE", "COR", "100"})
	want := "INSERT INTO VUELO (ORIGEN, DESTINO, ID_VUELO) VALUES ('EZE', 'COR', 100)"
	if q != want {
		t.Fatalf("got %q want %q", q, want)
	}
}

func TestBuildDeleteQueryTextPartitionKey(t *testing.T) {
	q := buildDeleteQuery("VUELO", []string{"ORIGEN", "DESTINO", "ID_VUELO"}, []string{"EZE", "COR", "100"})
	want := "DELETE FROM VUELO WHERE ORIGEN = 'EZE' AND ID_VUELO = 100"
	if q != want {
		t.Fatalf("got %q want %q", q, want)
	}
}

func TestBuildDeleteQueryNumericPartitionKey(t *testing.T) {
	q := buildDeleteQuery("AEROPUERTO", []string{"ID", "NOMBRE"}, []string{"7", "Ezeiza"})
	want := "DELETE FROM AEROPUERTO WHERE ID = 7 AND NOMBRE = 'Ezeiza'"
	if q != want {
		t.Fatalf("got %q want %q", q, want)
	}
}

func TestQuoteValue(t *testing.T) {
	if quoteValue("42") != "42" {
		t.Fatal("expected bare integer")
	}
	if quoteValue("EZE") != "'EZE'" {
		t.Fatal("expected quoted text")
	}
}
