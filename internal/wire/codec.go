package wire

import (
	"encoding/binary"
	"errors"
)

// Kind is the top-level envelope tag the core must recognise
// (spec.md §6).
type Kind uint8

const (
	KindInterest Kind = iota
	KindContentObject
	KindContentObjectLegacy // accepted as a synonym of KindContentObject
	KindInject              // administrative, local-only
	KindPDU                 // wraps any of the above; implies LINK-framed
)

// MaxEnvelopeSize is the oversize cutoff from spec.md §7
// ("Oversize (>65 535) envelope -> drop, log").
const MaxEnvelopeSize = 65535

var (
	ErrOversize    = errors.New("wire: envelope exceeds 65535 bytes")
	ErrMalformed   = errors.New("wire: malformed envelope")
	ErrUnknownKind = errors.New("wire: unrecognised top-level tag")
)

// Envelope is one decoded top-level frame.
type Envelope struct {
	Kind Kind

	Interest      *Interest
	ContentObject *ContentObject
	Inject        []byte
	PDUPayload    []byte // nested envelope bytes, re-fed through Decoder
}

// frame header: 1 byte kind + TLNum length, length-delimited value.
// This is the core's concrete stand-in for the real, out-of-scope
// wire codec (spec.md §1) — self-descriptive and closer-delimited in
// spirit (a length prefix is an equally valid way to self-delimit a
// TLV frame), good enough to drive parsing, classification, and the
// partial-frame discipline spec.md §6 requires.

// Decoder holds parser state across Feed calls so that partial frames
// arriving on a stream transport survive a read() boundary, per
// spec.md §6.
type Decoder struct {
	buf []byte
}

// Feed appends newly-read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next attempts to decode one complete envelope from the front of the
// buffered bytes. ok is false if more data is needed; err is non-nil
// for a genuine parse failure (caller should close a stream face, or
// drop-and-keep a datagram face, per spec.md §7).
func (d *Decoder) Next() (env Envelope, ok bool, err error) {
	if len(d.buf) < 1 {
		return Envelope{}, false, nil
	}
	kind := Kind(d.buf[0])
	ln, lenBytes, lok := ParseTLNum(d.buf[1:])
	if !lok {
		return Envelope{}, false, nil // need more bytes for the length field
	}
	if ln > MaxEnvelopeSize {
		// the frame's extent cannot be trusted: discard every buffered
		// byte and report the drop.
		d.buf = nil
		return Envelope{}, false, ErrOversize
	}
	total := 1 + lenBytes + int(ln)
	if len(d.buf) < total {
		return Envelope{}, false, nil
	}
	value := d.buf[1+lenBytes : total]
	d.buf = d.buf[total:]

	env, err = decodeValue(kind, value)
	if err != nil {
		return Envelope{}, false, err
	}
	return env, true, nil
}

// Pending reports the number of unconsumed bytes held by the decoder
// (a non-zero value when a stream read ended mid-frame).
func (d *Decoder) Pending() int { return len(d.buf) }

func decodeValue(kind Kind, value []byte) (Envelope, error) {
	switch kind {
	case KindInterest:
		it, err := decodeInterest(value)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Kind: KindInterest, Interest: it}, nil
	case KindContentObject, KindContentObjectLegacy:
		co, err := decodeContentObject(value)
		if err != nil {
			return Envelope{}, err
		}
		co.Raw = append([]byte(nil), value...)
		return Envelope{Kind: kind, ContentObject: co}, nil
	case KindInject:
		return Envelope{Kind: KindInject, Inject: append([]byte(nil), value...)}, nil
	case KindPDU:
		return Envelope{Kind: KindPDU, PDUPayload: append([]byte(nil), value...)}, nil
	default:
		return Envelope{}, ErrUnknownKind
	}
}

// --- Interest encode/decode ---
//
// Field layout inside the value, each self-delimited the same way as
// the top-level frame (tag byte + TLNum length + bytes):
//   0x01 name (concatenated component TLVs)
//   0x02 min-suffix (1 byte)
//   0x03 max-suffix (1 byte)
//   0x04 order (1 byte)
//   0x05 answer-from (1 byte)
//   0x06 scope (1 byte)
//   0x07 exclude component (repeatable)
//   0x08 publisher
//   0x09 nonce (exactly 6 bytes)
//   0x0a magic (1 byte)

const (
	fieldName       = 0x01
	fieldMinSuffix  = 0x02
	fieldMaxSuffix  = 0x03
	fieldOrder      = 0x04
	fieldAnswerFrom = 0x05
	fieldScope      = 0x06
	fieldExclude    = 0x07
	fieldPublisher  = 0x08
	fieldNonce      = 0x09
	fieldMagic      = 0x0a

	fieldFreshness = 0x0b
	fieldFinalBlk  = 0x0c
	fieldContent   = 0x0d
	fieldType      = 0x0e

	fieldSignature  = 0x0f
	fieldKeyLocator = 0x10
)

type fieldReader struct {
	buf []byte
}

func (r *fieldReader) next() (tag byte, value []byte, ok bool) {
	if len(r.buf) == 0 {
		return 0, nil, false
	}
	tag = r.buf[0]
	ln, lenBytes, lok := ParseTLNum(r.buf[1:])
	if !lok {
		return 0, nil, false
	}
	total := 1 + lenBytes + int(ln)
	if total > len(r.buf) {
		return 0, nil, false
	}
	value = r.buf[1+lenBytes : total]
	r.buf = r.buf[total:]
	return tag, value, true
}

type fieldWriter struct {
	out []byte
}

func (w *fieldWriter) put(tag byte, value []byte) {
	var lenBuf [9]byte
	n := TLNum(len(value)).EncodeInto(lenBuf[:])
	w.out = append(w.out, tag)
	w.out = append(w.out, lenBuf[:n]...)
	w.out = append(w.out, value...)
}

func decodeName(value []byte) (Name, error) {
	var n Name
	for len(value) > 0 {
		typ, tl, tok := ParseTLNum(value)
		if !tok {
			return nil, ErrMalformed
		}
		value = value[tl:]
		ln, ll, lok := ParseTLNum(value)
		if !lok || int(ln) > len(value)-ll {
			return nil, ErrMalformed
		}
		val := value[ll : ll+int(ln)]
		n = append(n, Component{Typ: typ, Val: append([]byte(nil), val...)})
		value = value[ll+int(ln):]
	}
	return n, nil
}

func decodeInterest(value []byte) (*Interest, error) {
	it := &Interest{MinSuffixComponents: -1, MaxSuffixComponents: -1, Scope: -1}
	r := fieldReader{buf: value}
	for {
		tag, v, ok := r.next()
		if !ok {
			break
		}
		switch tag {
		case fieldName:
			name, err := decodeName(v)
			if err != nil {
				return nil, err
			}
			it.Name = name
		case fieldMinSuffix:
			if len(v) != 1 {
				return nil, ErrMalformed
			}
			it.MinSuffixComponents = int(v[0])
		case fieldMaxSuffix:
			if len(v) != 1 {
				return nil, ErrMalformed
			}
			it.MaxSuffixComponents = int(v[0])
		case fieldOrder:
			if len(v) != 1 {
				return nil, ErrMalformed
			}
			it.Order = Order(v[0])
		case fieldAnswerFrom:
			if len(v) != 1 {
				return nil, ErrMalformed
			}
			it.AnswerFrom = AnswerFrom(v[0])
		case fieldScope:
			if len(v) != 1 {
				return nil, ErrMalformed
			}
			it.Scope = int(v[0])
		case fieldExclude:
			name, err := decodeName(v)
			if err != nil {
				return nil, err
			}
			it.Exclude = append(it.Exclude, name...)
		case fieldPublisher:
			it.Publisher = append([]byte(nil), v...)
		case fieldNonce:
			if len(v) != NonceLen {
				return nil, ErrMalformed
			}
			it.Nonce = append([]byte(nil), v...)
		case fieldMagic:
			if len(v) != 1 {
				return nil, ErrMalformed
			}
			it.Magic = v[0]
		}
	}
	if len(r.buf) != 0 {
		return nil, ErrMalformed
	}
	return it, nil
}

// EncodeInterest serialises an Interest into a full top-level
// KindInterest envelope.
func EncodeInterest(it *Interest) []byte {
	var w fieldWriter
	w.put(fieldName, it.Name.Bytes())
	if it.MinSuffixComponents >= 0 {
		w.put(fieldMinSuffix, []byte{byte(it.MinSuffixComponents)})
	}
	if it.MaxSuffixComponents >= 0 {
		w.put(fieldMaxSuffix, []byte{byte(it.MaxSuffixComponents)})
	}
	w.put(fieldOrder, []byte{byte(it.Order)})
	w.put(fieldAnswerFrom, []byte{byte(it.AnswerFrom)})
	if it.Scope >= 0 {
		w.put(fieldScope, []byte{byte(it.Scope)})
	}
	for _, ex := range it.Exclude {
		w.put(fieldExclude, Name{ex}.Bytes())
	}
	if it.Publisher != nil {
		w.put(fieldPublisher, it.Publisher)
	}
	if it.HasNonce() {
		w.put(fieldNonce, it.Nonce)
	}
	w.put(fieldMagic, []byte{it.Magic})
	return frame(KindInterest, w.out)
}

func decodeContentObject(value []byte) (*ContentObject, error) {
	co := &ContentObject{}
	r := fieldReader{buf: value}
	for {
		tag, v, ok := r.next()
		if !ok {
			break
		}
		switch tag {
		case fieldName:
			name, err := decodeName(v)
			if err != nil {
				return nil, err
			}
			co.Name = name
		case fieldPublisher:
			co.Publisher = append([]byte(nil), v...)
		case fieldType:
			if len(v) != 1 {
				return nil, ErrMalformed
			}
			co.Type = ContentType(v[0])
		case fieldFreshness:
			if len(v) != 4 {
				return nil, ErrMalformed
			}
			co.FreshnessSeconds = binary.BigEndian.Uint32(v)
			co.HasFreshness = true
		case fieldFinalBlk:
			name, err := decodeName(v)
			if err != nil || len(name) != 1 {
				return nil, ErrMalformed
			}
			c := name[0]
			co.FinalBlockID = &c
		case fieldContent:
			co.Content = append([]byte(nil), v...)
		case fieldSignature:
			co.Signature = append([]byte(nil), v...)
		case fieldKeyLocator:
			co.KeyLocator = append([]byte(nil), v...)
		}
	}
	if len(r.buf) != 0 {
		return nil, ErrMalformed
	}
	return co, nil
}

// EncodeContentObject serialises a ContentObject into a full
// top-level KindContentObject envelope.
func EncodeContentObject(co *ContentObject) []byte {
	var w fieldWriter
	w.put(fieldName, co.Name.Bytes())
	if co.Publisher != nil {
		w.put(fieldPublisher, co.Publisher)
	}
	w.put(fieldType, []byte{byte(co.Type)})
	if co.HasFreshness {
		var fb [4]byte
		binary.BigEndian.PutUint32(fb[:], co.FreshnessSeconds)
		w.put(fieldFreshness, fb[:])
	}
	if co.FinalBlockID != nil {
		w.put(fieldFinalBlk, Name{*co.FinalBlockID}.Bytes())
	}
	w.put(fieldContent, co.Content)
	if co.KeyLocator != nil {
		w.put(fieldKeyLocator, co.KeyLocator)
	}
	if co.Signature != nil {
		w.put(fieldSignature, co.Signature)
	}
	buf := frame(KindContentObject, w.out)
	co.Raw = w.out
	return buf
}

func frame(kind Kind, value []byte) []byte {
	var lenBuf [9]byte
	n := TLNum(len(value)).EncodeInto(lenBuf[:])
	out := make([]byte, 0, 1+n+len(value))
	out = append(out, byte(kind))
	out = append(out, lenBuf[:n]...)
	out = append(out, value...)
	return out
}

// EncodeInject wraps payload as a top-level KindInject envelope.
func EncodeInject(payload []byte) []byte {
	return frame(KindInject, payload)
}

// EncodePDU wraps an already-encoded envelope as a KindPDU frame.
func EncodePDU(inner []byte) []byte {
	return frame(KindPDU, inner)
}
