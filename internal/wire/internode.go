package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"strconv"

	"ringkeep/internal/ringerr"
)

// Role tells a replica how to treat a forwarded query.
type Role uint8

const (
	// RoleResponsible: "you are the responsible node, act as coordinator".
	RoleResponsible Role = 0
	// RoleReplica: "you are a replica, apply and ACK".
	RoleReplica Role = 1
)

// InterNodeRequest is the coordinator->replica request frame body.
type InterNodeRequest struct {
	Query       string
	Consistency ConsistencyLevel
	Role        Role
}

// ReadInterNodeHeader reads the 7-byte inter-node header and returns the
// body length to read next.
func ReadInterNodeHeader(r io.Reader) (flags byte, streamID uint16, length int32, err error) {
	var header [7]byte
	if err = readExact(r, header[:]); err != nil {
		return
	}
	flags = header[0]
	streamID = binary.BigEndian.Uint16(header[1:3])
	length = int32(binary.BigEndian.Uint32(header[3:7]))
	if length < 0 {
		err = ringerr.New(ringerr.KindWireMalformed, "wire.ReadInterNodeHeader: negative length")
	}
	return
}

func writeInterNodeHeader(w io.Writer, streamID uint16, body []byte) error {
	var header [7]byte
	header[0] = 0x00
	binary.BigEndian.PutUint16(header[1:3], streamID)
	binary.BigEndian.PutUint32(header[3:7], uint32(int32(len(body))))
	if _, err := w.Write(header[:]); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeInterNodeHeader", err)
	}
	if _, err := w.Write(body); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeInterNodeHeader", err)
	}
	return nil
}

// WriteInterNodeRequest writes a full request frame.
func WriteInterNodeRequest(w io.Writer, streamID uint16, req InterNodeRequest) error {
	var buf bytes.Buffer
	writeLongString(&buf, req.Query)
	var consBuf [2]byte
	binary.BigEndian.PutUint16(consBuf[:], uint16(req.Consistency))
	buf.Write(consBuf[:])
	buf.WriteByte(byte(req.Role))
	return writeInterNodeHeader(w, streamID, buf.Bytes())
}

// DecodeInterNodeRequest parses a request body (the caller has already read
// the header and the body bytes via ReadInterNodeHeader + io.ReadFull).
func DecodeInterNodeRequest(body []byte) (InterNodeRequest, error) {
	r := bytes.NewReader(body)
	query, err := readString(r, 4)
	if err != nil {
		return InterNodeRequest{}, err
	}
	var consBuf [2]byte
	if err := readExact(r, consBuf[:]); err != nil {
		return InterNodeRequest{}, err
	}
	var roleBuf [1]byte
	if err := readExact(r, roleBuf[:]); err != nil {
		return InterNodeRequest{}, err
	}
	return InterNodeRequest{
		Query:       query,
		Consistency: ConsistencyLevel(binary.BigEndian.Uint16(consBuf[:])),
		Role:        Role(roleBuf[0]),
	}, nil
}

// WriteInterNodeVoid writes a VOID response (used by surrogate/forwarded
// writes that don't need ROWS framing).
func WriteInterNodeVoid(w io.Writer, streamID uint16) error {
	var buf bytes.Buffer
	var kind [4]byte
	binary.BigEndian.PutUint32(kind[:], uint32(ResultVoid))
	buf.Write(kind[:])
	buf.Write([]byte{0x00, 0x00})
	return writeInterNodeHeader(w, streamID, buf.Bytes())
}

// WriteInterNodeRows writes a ROWS response with the inter-node field order
// {kind, row_count, column_count, rows} — inverted relative to the client
// protocol.
func WriteInterNodeRows(w io.Writer, streamID uint16, columnCount int, rows []Row) error {
	var buf bytes.Buffer
	var kind [4]byte
	binary.BigEndian.PutUint32(kind[:], uint32(ResultRows))
	buf.Write(kind[:])

	var rowCountBuf, colCountBuf [4]byte
	binary.BigEndian.PutUint32(rowCountBuf[:], uint32(len(rows)))
	binary.BigEndian.PutUint32(colCountBuf[:], uint32(columnCount))
	buf.Write(rowCountBuf[:])
	buf.Write(colCountBuf[:])

	for _, row := range rows {
		if err := writeRow(&buf, row); err != nil {
			return err
		}
	}
	return writeInterNodeHeader(w, streamID, buf.Bytes())
}

// WriteAck writes the single-row {"ACK"} response mutations reply with.
func WriteAck(w io.Writer, streamID uint16) error {
	return WriteInterNodeRows(w, streamID, 1, []Row{StringRow("ACK")})
}

// WriteSelectReply writes matched rows followed by one trailer row holding
// the replica's current timestamp, per §4.1/§4.7.
func WriteSelectReply(w io.Writer, streamID uint16, columnCount int, rows []Row, timestamp int64) error {
	all := make([]Row, 0, len(rows)+1)
	all = append(all, rows...)
	all = append(all, Row{[]byte(strconv.FormatInt(timestamp, 10))})
	return WriteInterNodeRows(w, streamID, columnCount, all)
}

// DecodeInterNodeResponse parses a response body with the inter-node field
// order.
func DecodeInterNodeResponse(body []byte) (ResultKind, []Row, error) {
	r := bytes.NewReader(body)
	var kindBuf [4]byte
	if err := readExact(r, kindBuf[:]); err != nil {
		return 0, nil, err
	}
	kind := ResultKind(int32(binary.BigEndian.Uint32(kindBuf[:])))

	switch kind {
	case ResultVoid:
		var trailer [2]byte
		if err := readExact(r, trailer[:]); err != nil {
			return 0, nil, err
		}
		return ResultVoid, nil, nil
	case ResultRows:
		var rowCountBuf, colCountBuf [4]byte
		if err := readExact(r, rowCountBuf[:]); err != nil {
			return 0, nil, err
		}
		if err := readExact(r, colCountBuf[:]); err != nil {
			return 0, nil, err
		}
		rowCount := int(binary.BigEndian.Uint32(rowCountBuf[:]))
		columnCount := int(binary.BigEndian.Uint32(colCountBuf[:]))

		rows := make([]Row, 0, rowCount)
		for i := 0; i < rowCount; i++ {
			row, err := readRow(r, columnCount)
			if err != nil {
				return 0, nil, err
			}
			rows = append(rows, row)
		}
		return ResultRows, rows, nil
	default:
		return 0, nil, ringerr.New(ringerr.KindWireMalformed, "wire.DecodeInterNodeResponse: kind")
	}
}

// DecodeSelectReply parses a replica's SELECT response: rowCount-1 rows of
// columnCount cells each, followed by one single-cell trailer row holding
// the replica's timestamp (§4.1, §4.7). The trailer's arity differs from
// the declared column_count, so it cannot go through the generic
// DecodeInterNodeResponse reader.
func DecodeSelectReply(body []byte) (rows []Row, timestamp int64, err error) {
	r := bytes.NewReader(body)
	var kindBuf [4]byte
	if err = readExact(r, kindBuf[:]); err != nil {
		return nil, 0, err
	}
	if ResultKind(int32(binary.BigEndian.Uint32(kindBuf[:]))) != ResultRows {
		return nil, 0, ringerr.New(ringerr.KindWireMalformed, "wire.DecodeSelectReply: kind")
	}

	var rowCountBuf, colCountBuf [4]byte
	if err = readExact(r, rowCountBuf[:]); err != nil {
		return nil, 0, err
	}
	if err = readExact(r, colCountBuf[:]); err != nil {
		return nil, 0, err
	}
	rowCount := int(binary.BigEndian.Uint32(rowCountBuf[:]))
	columnCount := int(binary.BigEndian.Uint32(colCountBuf[:]))
	if rowCount < 1 {
		return nil, 0, ringerr.New(ringerr.KindWireMalformed, "wire.DecodeSelectReply: row_count")
	}

	rows = make([]Row, 0, rowCount-1)
	for i := 0; i < rowCount-1; i++ {
		row, rerr := readRow(r, columnCount)
		if rerr != nil {
			return nil, 0, rerr
		}
		rows = append(rows, row)
	}

	trailer, rerr := readRow(r, 1)
	if rerr != nil {
		return nil, 0, rerr
	}
	timestamp, perr := strconv.ParseInt(string(trailer[0]), 10, 64)
	if perr != nil {
		return nil, 0, ringerr.Wrap(ringerr.KindWireMalformed, "wire.DecodeSelectReply: timestamp", perr)
	}
	return rows, timestamp, nil
}
