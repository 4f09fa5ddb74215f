// Package wire implements the three framed binary protocols ringkeep speaks:
// client<->coordinator, coordinator<->replica, and gossip. All integers are
// big-endian; all strings are length-prefixed UTF-8 with no NUL
// termination.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"ringkeep/internal/ringerr"
)

// ConsistencyLevel is the wire value carried on QUERY and replica-request
// frames.
type ConsistencyLevel uint16

const (
	Weak   ConsistencyLevel = 0x0001 // ONE
	Strong ConsistencyLevel = 0x0004 // QUORUM
)

func (c ConsistencyLevel) String() string {
	if c == Strong {
		return "QUORUM"
	}
	return "ONE"
}

// ResultKind tags a RESULT/response body.
type ResultKind int32

const (
	ResultVoid ResultKind = 0x0001
	ResultRows ResultKind = 0x0002
)

// readExact fills buf completely or returns WireMalformed.
func readExact(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return ringerr.Wrap(ringerr.KindWireMalformed, "wire.readExact", err)
	}
	return nil
}

func readString(r io.Reader, lenBytes int) (string, error) {
	var n int
	switch lenBytes {
	case 2:
		var b [2]byte
		if err := readExact(r, b[:]); err != nil {
			return "", err
		}
		n = int(binary.BigEndian.Uint16(b[:]))
	case 4:
		var b [4]byte
		if err := readExact(r, b[:]); err != nil {
			return "", err
		}
		n = int(int32(binary.BigEndian.Uint32(b[:])))
	default:
		return "", ringerr.New(ringerr.KindWireMalformed, "wire.readString: bad length width")
	}
	if n < 0 {
		return "", ringerr.New(ringerr.KindWireMalformed, "wire.readString: negative length")
	}
	buf := make([]byte, n)
	if err := readExact(r, buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", ringerr.New(ringerr.KindUtf8, "wire.readString")
	}
	return string(buf), nil
}

func writeShortString(w io.Writer, s string) error {
	if !utf8.ValidString(s) {
		return ringerr.New(ringerr.KindUtf8, "wire.writeShortString")
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeShortString", err)
	}
	_, err := io.WriteString(w, s)
	return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeShortString", err)
}

func writeLongString(w io.Writer, s string) error {
	if !utf8.ValidString(s) {
		return ringerr.New(ringerr.KindUtf8, "wire.writeLongString")
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeLongString", err)
	}
	_, err := io.WriteString(w, s)
	return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeLongString", err)
}

// Row is one result row: each element is either a UTF-8 value or nil for
// NULL (absent value), per the client and inter-node ROWS encodings.
type Row [][]byte

func writeRow(w io.Writer, row Row) error {
	for _, cell := range row {
		if cell == nil {
			var neg [4]byte
			binary.BigEndian.PutUint32(neg[:], 0xFFFFFFFF) // -1 as int32: NULL
			if _, err := w.Write(neg[:]); err != nil {
				return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeRow", err)
			}
			continue
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(int32(len(cell))))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeRow", err)
		}
		if _, err := w.Write(cell); err != nil {
			return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeRow", err)
		}
	}
	return nil
}

func readRow(r io.Reader, columnCount int) (Row, error) {
	row := make(Row, columnCount)
	for i := 0; i < columnCount; i++ {
		var lenBuf [4]byte
		if err := readExact(r, lenBuf[:]); err != nil {
			return nil, err
		}
		n := int32(binary.BigEndian.Uint32(lenBuf[:]))
		if n < 0 {
			row[i] = nil
			continue
		}
		buf := make([]byte, n)
		if err := readExact(r, buf); err != nil {
			return nil, err
		}
		row[i] = buf
	}
	return row, nil
}

// StringRow is a convenience constructor for a Row of non-NULL UTF-8 cells.
func StringRow(values ...string) Row {
	row := make(Row, len(values))
	for i, v := range values {
		row[i] = []byte(v)
	}
	return row
}

func fmtOp(op, detail string) string {
	if detail == "" {
		return op
	}
	return fmt.Sprintf("%s(%s)", op, detail)
}
