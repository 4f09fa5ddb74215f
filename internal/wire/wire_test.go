package wire

import (
	"bytes"
	"testing"
)

func TestStartupRoundTrip(t *testing.T) {
	body := EncodeStartup()
	version, err := DecodeStartup(body)
	if err != nil {
		t.Fatalf("DecodeStartup: %v", err)
	}
	if version != "3.0.0" {
		t.Fatalf("got version %q", version)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	body := EncodeQuery("SELECT * FROM T WHERE ID = 1", Strong)
	query, cons, err := DecodeQuery(body)
	if err != nil {
		t.Fatalf("DecodeQuery: %v", err)
	}
	if query != "SELECT * FROM T WHERE ID = 1" || cons != Strong {
		t.Fatalf("got %q %v", query, cons)
	}
}

func TestRowsResultRoundTrip(t *testing.T) {
	rows := []Row{StringRow("1", "a"), StringRow("2", "b")}
	body, err := EncodeRowsResult([]string{"ID", "NAME"}, rows)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	kind, got, err := DecodeResult(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kind != ResultRows || len(got) != 2 {
		t.Fatalf("got kind=%v rows=%v", kind, got)
	}
	if string(got[0][0]) != "1" || string(got[0][1]) != "a" {
		t.Fatalf("row 0 mismatch: %v", got[0])
	}
}

func TestVoidResultRoundTrip(t *testing.T) {
	kind, rows, err := DecodeResult(EncodeVoidResult())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kind != ResultVoid || rows != nil {
		t.Fatalf("got kind=%v rows=%v", kind, rows)
	}
}

func TestClientFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := EncodeQuery("SELECT * FROM T", Weak)
	if err := WriteClientFrame(&buf, false, 7, OpQuery, body); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := ReadClientFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.StreamID != 7 || f.Opcode != OpQuery || !bytes.Equal(f.Body, body) {
		t.Fatalf("frame mismatch: %+v", f)
	}
}

func TestClientFrameUnknownOpcode(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteClientFrame(&buf, false, 1, ClientOpcode(0x77), nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadClientFrame(&buf); err == nil {
		t.Fatal("expected UnknownOpcode error")
	}
}

func TestClientFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x04, 0x00, 0x00})
	if _, err := ReadClientFrame(&buf); err == nil {
		t.Fatal("expected WireMalformed error on short header")
	}
}

func TestInterNodeRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := InterNodeRequest{Query: "DELETE FROM T WHERE ID = 1", Consistency: Strong, Role: RoleReplica}
	if err := WriteInterNodeRequest(&buf, 3, req); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, streamID, length, err := ReadInterNodeHeader(&buf)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if streamID != 3 {
		t.Fatalf("got stream %d", streamID)
	}
	body := make([]byte, length)
	if _, err := buf.Read(body); err != nil {
		t.Fatalf("body read: %v", err)
	}
	got, err := DecodeInterNodeRequest(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Query != req.Query || got.Consistency != req.Consistency || got.Role != req.Role {
		t.Fatalf("got %+v", got)
	}
}

func TestAckRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAck(&buf, 9); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, length, err := ReadInterNodeHeader(&buf)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	body := make([]byte, length)
	buf.Read(body)
	kind, rows, err := DecodeInterNodeResponse(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if kind != ResultRows || len(rows) != 1 || string(rows[0][0]) != "ACK" {
		t.Fatalf("got %v %v", kind, rows)
	}
}

func TestSelectReplyRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rows := []Row{StringRow("7", "new")}
	if err := WriteSelectReply(&buf, 1, 2, rows, 42); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, length, err := ReadInterNodeHeader(&buf)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	body := make([]byte, length)
	buf.Read(body)
	gotRows, ts, err := DecodeSelectReply(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(gotRows) != 1 || string(gotRows[0][0]) != "7" || ts != 42 {
		t.Fatalf("got rows=%v ts=%d", gotRows, ts)
	}
}

func TestGossipSynRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSyn(&buf, "10.0.0.1:9044", "10.0.0.1:9044:100.0:1"); err != nil {
		t.Fatalf("write: %v", err)
	}
	typ, length, err := ReadGossipHeader(&buf)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if typ != GossipSyn {
		t.Fatalf("got type %v", typ)
	}
	body := make([]byte, length)
	buf.Read(body)
	ip, digest, err := DecodeSyn(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ip != "10.0.0.1:9044" || digest != "10.0.0.1:9044:100.0:1" {
		t.Fatalf("got ip=%q digest=%q", ip, digest)
	}
}

func TestGossipAckRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAckGossip(&buf, "10.0.0.2:9044", "10.0.0.3:9044:1.0:2:Normal"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, length, err := ReadGossipHeader(&buf)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	body := make([]byte, length)
	buf.Read(body)
	behind, fresh, err := DecodeAckGossip(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if behind != "10.0.0.2:9044" || fresh != "10.0.0.3:9044:1.0:2:Normal" {
		t.Fatalf("got behind=%q fresh=%q", behind, fresh)
	}
}
