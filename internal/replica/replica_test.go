package replica

import (
	"net"
	"testing"
	"time"

	"ringkeep/internal/coordinator"
	"ringkeep/internal/nodestate"
	"ringkeep/internal/wire"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	s := nodestate.New("127.0.0.1:9042", t.TempDir(), "AEROLINEA", 100)
	if _, err := s.Ensure("AEROLINEA", 1); err != nil {
		t.Fatalf("ensure keyspace: %v", err)
	}
	ks, err := s.Registry.Keyspace("AEROLINEA")
	if err != nil {
		t.Fatalf("keyspace: %v", err)
	}
	if _, err := ks.CreateTable("VUELO", []string{"ORIGEN", "DESTINO", "ID_VUELO"}); err != nil {
		t.Fatalf("create table: %v", err)
	}
	coord := coordinator.New(coordinator.Config{Self: "127.0.0.1:9042", InterNodePort: "9043"}, s)
	return New(s, coord)
}

func pipeConns(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	return client, server
}

func TestReplicaInsertAck(t *testing.T) {
	h := newTestHandler(t)
	client, server := pipeConns(t)

	errc := make(chan error, 1)
	go func() { errc <- h.HandleConn(server) }()

	req := wire.InterNodeRequest{Query: "INSERT INTO VUELO (ORIGEN, DESTINO, ID_VUELO) VALUES ('EZE', 'COR', 100)", Consistency: wire.Strong, Role: wire.RoleReplica}
	if err := wire.WriteInterNodeRequest(client, 1, req); err != nil {
		t.Fatalf("write request: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, length, err := wire.ReadInterNodeHeader(client)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	body := make([]byte, length)
	if _, err := readFullTest(client, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	kind, rows, err := wire.DecodeInterNodeResponse(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kind != wire.ResultRows || len(rows) != 1 || string(rows[0][0]) != "ACK" {
		t.Fatalf("expected ACK, got kind=%v rows=%v", kind, rows)
	}
	if err := <-errc; err != nil {
		t.Fatalf("HandleConn: %v", err)
	}
}

func TestReplicaSelectReturnsRowsAndTimestamp(t *testing.T) {
	h := newTestHandler(t)
	ks, _ := h.state.Registry.Keyspace("AEROLINEA")
	tbl, _ := ks.Table("VUELO")
	tbl.InsertAndPersist("EZE,COR,100")
	h.state.BumpTimestamp()

	client, server := pipeConns(t)
	errc := make(chan error, 1)
	go func() { errc <- h.HandleConn(server) }()

	req := wire.InterNodeRequest{Query: "SELECT * FROM VUELO WHERE ORIGEN = 'EZE'", Consistency: wire.Weak, Role: wire.RoleReplica}
	if err := wire.WriteInterNodeRequest(client, 2, req); err != nil {
		t.Fatalf("write request: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, length, err := wire.ReadInterNodeHeader(client)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	body := make([]byte, length)
	if _, err := readFullTest(client, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	rows, ts, err := wire.DecodeSelectReply(body)
	if err != nil {
		t.Fatalf("decode select reply: %v", err)
	}
	if len(rows) != 1 || ts != 1 {
		t.Fatalf("got rows=%v ts=%d", rows, ts)
	}
	if err := <-errc; err != nil {
		t.Fatalf("HandleConn: %v", err)
	}
}

func readFullTest(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
