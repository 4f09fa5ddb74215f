package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"ringkeep/internal/ringerr"
)

// GossipType tags a gossip frame.
type GossipType uint8

const (
	GossipSyn  GossipType = 0x00
	GossipAck  GossipType = 0x01
	GossipAck2 GossipType = 0x02
)

// ReadGossipHeader reads the 5-byte gossip header and returns the body
// length to read next.
func ReadGossipHeader(r io.Reader) (GossipType, int32, error) {
	var header [5]byte
	if err := readExact(r, header[:]); err != nil {
		return 0, 0, err
	}
	typ := GossipType(header[0])
	switch typ {
	case GossipSyn, GossipAck, GossipAck2:
	default:
		return 0, 0, ringerr.New(ringerr.KindUnknownOpcode, "wire.ReadGossipHeader")
	}
	length := int32(binary.BigEndian.Uint32(header[1:5]))
	if length < 0 {
		return 0, 0, ringerr.New(ringerr.KindWireMalformed, "wire.ReadGossipHeader: negative length")
	}
	return typ, length, nil
}

func writeGossipFrame(w io.Writer, typ GossipType, body []byte) error {
	var header [5]byte
	header[0] = byte(typ)
	binary.BigEndian.PutUint32(header[1:5], uint32(int32(len(body))))
	if _, err := w.Write(header[:]); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeGossipFrame", err)
	}
	if _, err := w.Write(body); err != nil {
		return ringerr.Wrap(ringerr.KindIoDurability, "wire.writeGossipFrame", err)
	}
	return nil
}

// WriteSyn writes a SYN frame carrying the sender's address and its full
// digest string ("<ip>:<generation>:<version>" triples, whitespace
// separated).
func WriteSyn(w io.Writer, senderIP, digest string) error {
	var buf bytes.Buffer
	writeLongString(&buf, senderIP)
	writeLongString(&buf, digest)
	return writeGossipFrame(w, GossipSyn, buf.Bytes())
}

// DecodeSyn parses a SYN body.
func DecodeSyn(body []byte) (senderIP, digest string, err error) {
	r := bytes.NewReader(body)
	if senderIP, err = readString(r, 4); err != nil {
		return
	}
	digest, err = readString(r, 4)
	return
}

// WriteAckGossip writes an ACK frame: line 1 is the "I am behind on"
// addresses (bare addresses, whitespace separated, with no generation or
// version attached), line 2 is the full tuples the sender already has
// fresher data for.
func WriteAckGossip(w io.Writer, behind, fresh string) error {
	body := []byte(behind + "\n" + fresh)
	return writeGossipFrame(w, GossipAck, body)
}

// DecodeAckGossip splits an ACK body into its two newline-separated lines.
func DecodeAckGossip(body []byte) (behind, fresh string, err error) {
	s := string(body)
	idx := bytes.IndexByte(body, '\n')
	if idx < 0 {
		return s, "", nil
	}
	return s[:idx], s[idx+1:], nil
}

// WriteAck2 writes an ACK2 frame: whitespace-separated full tuples
// answering the peer's "behind" list.
func WriteAck2(w io.Writer, tuples string) error {
	return writeGossipFrame(w, GossipAck2, []byte(tuples))
}

// DecodeAck2 returns the raw tuples string of an ACK2 body.
func DecodeAck2(body []byte) string {
	return string(body)
}
