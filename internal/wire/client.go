package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"ringkeep/internal/ringerr"
)

// Client opcodes.
type ClientOpcode int8

const (
	OpError   ClientOpcode = 0x00
	OpStartup ClientOpcode = 0x01
	OpReady   ClientOpcode = 0x02
	OpQuery   ClientOpcode = 0x07
	OpResult  ClientOpcode = 0x08
)

const (
	versionRequest  uint8 = 0x04
	versionResponse uint8 = 0x84
)

// ClientFrame is one client<->coordinator message: a 9-byte header followed
// by an opcode-specific body.
type ClientFrame struct {
	Version  uint8
	Flags    uint8
	StreamID uint16
	Opcode   ClientOpcode
	Body     []byte
}

// ReadClientFrame reads and validates one frame from r.
func ReadClientFrame(r io.Reader) (*ClientFrame, error) {
	var header [9]byte
	if err := readExact(r, header[:]); err != nil {
		return nil, err
	}

	f := &ClientFrame{
		Version:  header[0],
		Flags:    header[1],
		StreamID: binary.BigEndian.Uint16(header[2:4]),
		Opcode:   ClientOpcode(int8(header[4])),
	}
	length := int32(binary.BigEndian.Uint32(header[5:9]))
	if length < 0 {
		return nil, ringerr.New(ringerr.KindWireMalformed, "wire.ReadClientFrame: negative length")
	}

	switch f.Opcode {
	case OpError, OpStartup, OpReady, OpQuery, OpResult:
	default:
		return nil, ringerr.New(ringerr.KindUnknownOpcode, "wire.ReadClientFrame")
	}

	body := make([]byte, length)
	if err := readExact(r, body); err != nil {
		return nil, err
	}
	f.Body = body
	return f, nil
}

// WriteClientFrame writes a frame with the given body to w.
func WriteClientFrame(w io.Writer, isResponse bool, streamID uint16, opcode ClientOpcode, body []byte) error {
	var header [9]byte
	if isResponse {
		header[0] = versionResponse
	} else {
		header[0] = versionRequest
	}
	header[1] = 0x00
	binary.BigEndian.PutUint16(header[2:4], streamID)
	header[4] = byte(opcode)
	binary.BigEndian.PutUint32(header[5:9], uint32(int32(len(body))))

	if _, err := w.Write(header[:]); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "wire.WriteClientFrame", err)
	}
	if _, err := w.Write(body); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "wire.WriteClientFrame", err)
	}
	return nil
}

// EncodeStartup builds the STARTUP body: a single CQL_VERSION=3.0.0 option.
func EncodeStartup() []byte {
	var buf bytes.Buffer
	var count [2]byte
	binary.BigEndian.PutUint16(count[:], 1)
	buf.Write(count[:])
	writeShortString(&buf, "CQL_VERSION")
	writeShortString(&buf, "3.0.0")
	return buf.Bytes()
}

// DecodeStartup validates a STARTUP body and returns the CQL_VERSION value.
func DecodeStartup(body []byte) (string, error) {
	r := bytes.NewReader(body)
	var countBuf [2]byte
	if err := readExact(r, countBuf[:]); err != nil {
		return "", err
	}
	count := binary.BigEndian.Uint16(countBuf[:])
	if count != 1 {
		return "", ringerr.New(ringerr.KindWireMalformed, "wire.DecodeStartup: option_count")
	}
	key, err := readString(r, 2)
	if err != nil {
		return "", err
	}
	if key != "CQL_VERSION" {
		return "", ringerr.New(ringerr.KindWireMalformed, "wire.DecodeStartup: key")
	}
	return readString(r, 2)
}

// EncodeQuery builds a QUERY body.
func EncodeQuery(query string, consistency ConsistencyLevel) []byte {
	var buf bytes.Buffer
	writeLongString(&buf, query)
	var consBuf [2]byte
	binary.BigEndian.PutUint16(consBuf[:], uint16(consistency))
	buf.Write(consBuf[:])
	buf.WriteByte(0x00) // flags
	return buf.Bytes()
}

// DecodeQuery parses a QUERY body into its query text and consistency.
func DecodeQuery(body []byte) (string, ConsistencyLevel, error) {
	r := bytes.NewReader(body)
	query, err := readString(r, 4)
	if err != nil {
		return "", 0, err
	}
	var consBuf [2]byte
	if err := readExact(r, consBuf[:]); err != nil {
		return "", 0, err
	}
	var flags [1]byte
	if err := readExact(r, flags[:]); err != nil {
		return "", 0, err
	}
	return query, ConsistencyLevel(binary.BigEndian.Uint16(consBuf[:])), nil
}

// EncodeError builds an ERROR body: a 4-byte error code followed by the
// textual message, per spec §7's "textual error frame, connection closed"
// requirement for quorum-not-met and other dispatch failures.
func EncodeError(message string) []byte {
	var buf bytes.Buffer
	var code [4]byte
	binary.BigEndian.PutUint32(code[:], 0x1000)
	buf.Write(code[:])
	writeLongString(&buf, message)
	return buf.Bytes()
}

// DecodeError parses an ERROR body, returning its message.
func DecodeError(body []byte) (string, error) {
	r := bytes.NewReader(body)
	var code [4]byte
	if err := readExact(r, code[:]); err != nil {
		return "", err
	}
	return readString(r, 4)
}

// EncodeVoidResult builds a RESULT/VOID body.
func EncodeVoidResult() []byte {
	var buf bytes.Buffer
	var kind [4]byte
	binary.BigEndian.PutUint32(kind[:], uint32(ResultVoid))
	buf.Write(kind[:])
	buf.Write([]byte{0x00, 0x00})
	return buf.Bytes()
}

// EncodeRowsResult builds a client-facing RESULT/ROWS body: metadata flags,
// column_count, row_count, then rows (client ordering: column_count before
// row_count).
func EncodeRowsResult(columns []string, rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	var kind [4]byte
	binary.BigEndian.PutUint32(kind[:], uint32(ResultRows))
	buf.Write(kind[:])

	var metaFlags [4]byte
	binary.BigEndian.PutUint32(metaFlags[:], 0x0004)
	buf.Write(metaFlags[:])

	var colCount, rowCount [4]byte
	binary.BigEndian.PutUint32(colCount[:], uint32(len(columns)))
	binary.BigEndian.PutUint32(rowCount[:], uint32(len(rows)))
	buf.Write(colCount[:])
	buf.Write(rowCount[:])

	for _, row := range rows {
		if err := writeRow(&buf, row); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeResult parses any RESULT body, returning the row set for ROWS (nil
// for VOID).
func DecodeResult(body []byte) (ResultKind, []Row, error) {
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
		var metaFlags, colCountBuf, rowCountBuf [4]byte
		if err := readExact(r, metaFlags[:]); err != nil {
			return 0, nil, err
		}
		if err := readExact(r, colCountBuf[:]); err != nil {
			return 0, nil, err
		}
		if err := readExact(r, rowCountBuf[:]); err != nil {
			return 0, nil, err
		}
		columnCount := int(binary.BigEndian.Uint32(colCountBuf[:]))
		rowCount := int(binary.BigEndian.Uint32(rowCountBuf[:]))

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
		return 0, nil, ringerr.New(ringerr.KindWireMalformed, "wire.DecodeResult: kind")
	}
}
