package wire

import (
	"encoding/binary"
	"errors"
)

// Protocol constants. The message sizes are exact wire contracts shared with
// every other implementation of this protocol; changing any of them is a
// breaking protocol revision.
const (
	MagicCookie uint32 = 0xabcddcba

	TypeOffer   byte = 0x2
	TypeRequest byte = 0x3
	TypePayload byte = 0x4

	OfferLen         = 9
	RequestLen       = 13
	PayloadHeaderLen = 21

	SegmentSize = 1024
)

var (
	ErrShortPacket = errors.New("packet too short")
	ErrBadMagic    = errors.New("magic cookie mismatch")
	ErrBadType     = errors.New("unexpected message type")
)

// Offer advertises the server's service ports. Broadcast on the well-known
// offer port.
type Offer struct {
	UDPPort uint16
	TCPPort uint16
}

func (o *Offer) Encode(dst []byte) (int, error) {
	if len(dst) < OfferLen {
		return 0, ErrShortPacket
	}
	binary.BigEndian.PutUint32(dst[0:4], MagicCookie)
	dst[4] = TypeOffer
	binary.BigEndian.PutUint16(dst[5:7], o.UDPPort)
	binary.BigEndian.PutUint16(dst[7:9], o.TCPPort)
	return OfferLen, nil
}

func (o *Offer) Decode(src []byte) (int, error) {
	if len(src) < OfferLen {
		return 0, ErrShortPacket
	}
	if binary.BigEndian.Uint32(src[0:4]) != MagicCookie {
		return 0, ErrBadMagic
	}
	if src[4] != TypeOffer {
		return 0, ErrBadType
	}
	o.UDPPort = binary.BigEndian.Uint16(src[5:7])
	o.TCPPort = binary.BigEndian.Uint16(src[7:9])
	return OfferLen, nil
}

// Request asks the server to stream FileSize bytes back over UDP.
type Request struct {
	FileSize uint64
}

func (r *Request) Encode(dst []byte) (int, error) {
	if len(dst) < RequestLen {
		return 0, ErrShortPacket
	}
	binary.BigEndian.PutUint32(dst[0:4], MagicCookie)
	dst[4] = TypeRequest
	binary.BigEndian.PutUint64(dst[5:13], r.FileSize)
	return RequestLen, nil
}

func (r *Request) Decode(src []byte) (int, error) {
	if len(src) < RequestLen {
		return 0, ErrShortPacket
	}
	if binary.BigEndian.Uint32(src[0:4]) != MagicCookie {
		return 0, ErrBadMagic
	}
	if src[4] != TypeRequest {
		return 0, ErrBadType
	}
	r.FileSize = binary.BigEndian.Uint64(src[5:13])
	return RequestLen, nil
}

// PayloadHeader precedes the filler bytes of one UDP segment. Segment is
// zero based; Total is fixed for the lifetime of a transfer.
type PayloadHeader struct {
	Total   uint64
	Segment uint64
}

// EncodePayload writes the header followed by payload into dst.
func (p *PayloadHeader) EncodePayload(dst, payload []byte) (int, error) {
	need := PayloadHeaderLen + len(payload)
	if len(dst) < need {
		return 0, ErrShortPacket
	}
	binary.BigEndian.PutUint32(dst[0:4], MagicCookie)
	dst[4] = TypePayload
	binary.BigEndian.PutUint64(dst[5:13], p.Total)
	binary.BigEndian.PutUint64(dst[13:21], p.Segment)
	copy(dst[PayloadHeaderLen:], payload)
	return need, nil
}

// Decode reads only the fixed-size header; trailing filler bytes are the
// caller's business.
func (p *PayloadHeader) Decode(src []byte) (int, error) {
	if len(src) < PayloadHeaderLen {
		return 0, ErrShortPacket
	}
	if binary.BigEndian.Uint32(src[0:4]) != MagicCookie {
		return 0, ErrBadMagic
	}
	if src[4] != TypePayload {
		return 0, ErrBadType
	}
	p.Total = binary.BigEndian.Uint64(src[5:13])
	p.Segment = binary.BigEndian.Uint64(src[13:21])
	return PayloadHeaderLen, nil
}

// PeekType reports the message type of a datagram that carries a valid magic
// cookie. ok is false for short or foreign datagrams.
func PeekType(src []byte) (byte, bool) {
	if len(src) < 5 {
		return 0, false
	}
	if binary.BigEndian.Uint32(src[0:4]) != MagicCookie {
		return 0, false
	}
	return src[4], true
}

func IsOffer(src []byte) bool {
	t, ok := PeekType(src)
	return ok && t == TypeOffer
}

func IsRequest(src []byte) bool {
	t, ok := PeekType(src)
	return ok && t == TypeRequest
}

func IsPayload(src []byte) bool {
	t, ok := PeekType(src)
	return ok && t == TypePayload
}

// SegmentCount returns ceil(fileSize / SegmentSize).
func SegmentCount(fileSize uint64) uint64 {
	return (fileSize + SegmentSize - 1) / SegmentSize
}
