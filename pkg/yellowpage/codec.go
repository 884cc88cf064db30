package yellowpage

import (
	"encoding/binary"
	"fmt"
)

// frameKind identifies which of the three gossip messages a datagram
// carries.
type frameKind byte

const (
	kindSyn    frameKind = 0x01
	kindSynAck frameKind = 0x02
	kindAck    frameKind = 0x03
)

var frameMagic = [4]byte{0x5A, 0x55, 0x4B, 0x59} // "ZUKY"

const wireVersion byte = 0x01

const frameHeaderLen = 4 + 1 + 1 // magic + version + kind

// synMessage is the Syn payload: our full digest.
type synMessage struct {
	Digest Digest
}

// synAckMessage is the SynAck payload: our digest piggybacked alongside
// the delta the initiator is missing.
type synAckMessage struct {
	Digest Digest
	Delta  []deltaEntries
}

// ackMessage is the Ack payload: just the delta, no further digest
// exchange (the round ends here).
type ackMessage struct {
	Delta []deltaEntries
}

// encodeFrame wraps an already-encoded payload with the fixed magic,
// version, and kind header (spec §6).
func encodeFrame(kind frameKind, payload []byte) []byte {
	buf := make([]byte, 0, frameHeaderLen+len(payload))
	buf = append(buf, frameMagic[:]...)
	buf = append(buf, wireVersion)
	buf = append(buf, byte(kind))
	buf = append(buf, payload...)
	return buf
}

// decodeFrame validates the header and splits off the payload. Any
// malformation here (bad magic, unsupported version, truncated header)
// is a FrameDecodeError (spec §7): the caller drops the datagram and
// never panics.
func decodeFrame(raw []byte) (frameKind, []byte, error) {
	if len(raw) < frameHeaderLen {
		return 0, nil, fmt.Errorf("%w: short frame (%d bytes)", errFrameDecode, len(raw))
	}
	if raw[0] != frameMagic[0] || raw[1] != frameMagic[1] || raw[2] != frameMagic[2] || raw[3] != frameMagic[3] {
		return 0, nil, fmt.Errorf("%w: bad magic", errFrameDecode)
	}
	if raw[4] != wireVersion {
		return 0, nil, fmt.Errorf("%w: unsupported wire version %d", errFrameDecode, raw[4])
	}
	kind := frameKind(raw[5])
	switch kind {
	case kindSyn, kindSynAck, kindAck:
	default:
		return 0, nil, fmt.Errorf("%w: unknown frame kind %d", errFrameDecode, raw[5])
	}
	return kind, raw[frameHeaderLen:], nil
}

// cursor is a minimal bounds-checked reader over a payload byte slice.
// Every read validates there is enough remaining data before advancing,
// so a truncated or adversarial payload can only ever produce an error,
// never an out-of-range panic (spec §7 "all frame parsing is
// defensive").
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) need(n int) error {
	if c.pos+n > len(c.buf) {
		return fmt.Errorf("%w: truncated payload", errFrameDecode)
	}
	return nil
}

func (c *cursor) readUint16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) readUint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) readUint64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

func (c *cursor) readByte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) readString(n int) (string, error) {
	if err := c.need(n); err != nil {
		return "", err
	}
	s := string(c.buf[c.pos : c.pos+n])
	c.pos += n
	return s, nil
}

func putUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func putUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func putUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// encodeDigest serializes a Digest per spec §6: u32 count, then count x
// { u16 id_len, id_bytes, u64 generation, u64 max_version }.
func encodeDigest(d Digest) []byte {
	buf := make([]byte, 0, 4+len(d)*24)
	buf = putUint32(buf, uint32(len(d)))
	for _, e := range d {
		buf = putUint16(buf, uint16(len(e.ID)))
		buf = append(buf, []byte(e.ID)...)
		buf = putUint64(buf, uint64(e.Generation))
		buf = putUint64(buf, e.MaxVersion)
	}
	return buf
}

func decodeDigestAt(c *cursor) (Digest, error) {
	count, err := c.readUint32()
	if err != nil {
		return nil, err
	}
	d := make(Digest, 0, count)
	for i := uint32(0); i < count; i++ {
		idLen, err := c.readUint16()
		if err != nil {
			return nil, err
		}
		if idLen > maxKeyLen {
			return nil, fmt.Errorf("%w: digest id too long", errFrameDecode)
		}
		id, err := c.readString(int(idLen))
		if err != nil {
			return nil, err
		}
		gen, err := c.readUint64()
		if err != nil {
			return nil, err
		}
		maxVer, err := c.readUint64()
		if err != nil {
			return nil, err
		}
		d = append(d, digestEntry{ID: NodeID(id), Generation: Generation(gen), MaxVersion: maxVer})
	}
	return d, nil
}

// encodeDelta serializes a []deltaEntries per spec §6: u32 node_count,
// then per node { u16 id_len, id_bytes, u64 generation, u32 entry_count,
// entries[] }, each entry { u16 key_len, key_bytes, u64 version, u8
// tombstone, u32 value_len, value_bytes }.
func encodeDelta(deltas []deltaEntries) []byte {
	buf := make([]byte, 0, 8*len(deltas))
	buf = putUint32(buf, uint32(len(deltas)))
	for _, node := range deltas {
		buf = putUint16(buf, uint16(len(node.ID)))
		buf = append(buf, []byte(node.ID)...)
		buf = putUint64(buf, uint64(node.Generation))
		buf = putUint32(buf, uint32(len(node.Entries)))
		for _, kv := range node.Entries {
			buf = putUint16(buf, uint16(len(kv.Key)))
			buf = append(buf, []byte(kv.Key)...)
			buf = putUint64(buf, kv.Version)
			if kv.Tombstone {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
			buf = putUint32(buf, uint32(len(kv.Value)))
			buf = append(buf, []byte(kv.Value)...)
		}
	}
	return buf
}

func decodeDeltaAt(c *cursor) ([]deltaEntries, error) {
	nodeCount, err := c.readUint32()
	if err != nil {
		return nil, err
	}
	out := make([]deltaEntries, 0, nodeCount)
	for i := uint32(0); i < nodeCount; i++ {
		idLen, err := c.readUint16()
		if err != nil {
			return nil, err
		}
		if idLen > maxKeyLen {
			return nil, fmt.Errorf("%w: delta node id too long", errFrameDecode)
		}
		id, err := c.readString(int(idLen))
		if err != nil {
			return nil, err
		}
		gen, err := c.readUint64()
		if err != nil {
			return nil, err
		}
		entryCount, err := c.readUint32()
		if err != nil {
			return nil, err
		}
		entries := make([]KeyValue, 0, entryCount)
		for j := uint32(0); j < entryCount; j++ {
			keyLen, err := c.readUint16()
			if err != nil {
				return nil, err
			}
			if keyLen > maxKeyLen {
				return nil, fmt.Errorf("%w: key too long", errFrameDecode)
			}
			key, err := c.readString(int(keyLen))
			if err != nil {
				return nil, err
			}
			version, err := c.readUint64()
			if err != nil {
				return nil, err
			}
			tomb, err := c.readByte()
			if err != nil {
				return nil, err
			}
			valueLen, err := c.readUint32()
			if err != nil {
				return nil, err
			}
			if valueLen > maxValueLen {
				return nil, fmt.Errorf("%w: value too long", errFrameDecode)
			}
			value, err := c.readString(int(valueLen))
			if err != nil {
				return nil, err
			}
			entries = append(entries, KeyValue{Key: key, Value: value, Version: version, Tombstone: tomb != 0})
		}
		out = append(out, deltaEntries{ID: NodeID(id), Generation: Generation(gen), Entries: entries})
	}
	return out, nil
}

func encodeSyn(m synMessage) []byte {
	return encodeFrame(kindSyn, encodeDigest(m.Digest))
}

func encodeSynAck(m synAckMessage) []byte {
	payload := append(encodeDigest(m.Digest), encodeDelta(m.Delta)...)
	return encodeFrame(kindSynAck, payload)
}

func encodeAck(m ackMessage) []byte {
	return encodeFrame(kindAck, encodeDelta(m.Delta))
}

// decodeMessage decodes a raw datagram into one of synMessage,
// synAckMessage, or ackMessage.
func decodeMessage(raw []byte) (any, error) {
	kind, payload, err := decodeFrame(raw)
	if err != nil {
		return nil, err
	}

	c := &cursor{buf: payload}
	switch kind {
	case kindSyn:
		d, err := decodeDigestAt(c)
		if err != nil {
			return nil, err
		}
		return synMessage{Digest: d}, nil
	case kindSynAck:
		d, err := decodeDigestAt(c)
		if err != nil {
			return nil, err
		}
		delta, err := decodeDeltaAt(c)
		if err != nil {
			return nil, err
		}
		return synAckMessage{Digest: d, Delta: delta}, nil
	case kindAck:
		delta, err := decodeDeltaAt(c)
		if err != nil {
			return nil, err
		}
		return ackMessage{Delta: delta}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame kind", errFrameDecode)
	}
}
