// Package codec serializes hand frames to the compact wire form used by the
// streaming transport: a 4-byte magic marker, a big-endian uint32 payload
// length, and a CBOR payload. The length prefix makes truncation detectable
// and lets partial reads be reassembled from a byte stream.
package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/fxamacker/cbor/v2"

	"github.com/open-handtrack/pipeline/pkg/hand"
)

var magic = [4]byte{'H', 'L', 'K', '1'}

const (
	headerSize = 8

	// MaxPayloadSize bounds a single message. Two full hands of landmarks
	// encode to well under 2 KiB, so anything near this limit is garbage.
	MaxPayloadSize = 1 << 16
)

// Sentinel causes for DecodeError.
var (
	ErrBadMagic      = errors.New("bad magic marker")
	ErrTruncated     = errors.New("truncated message")
	ErrOversized     = errors.New("payload exceeds size limit")
	ErrHandCount     = errors.New("hand count out of range")
	ErrLandmarkCount = errors.New("landmark count mismatch")
)

// DecodeError reports a malformed wire message. The receiver drops the
// offending frame and keeps reading; it never takes the pipeline down.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// wireLandmark and wireFrame use CBOR array encoding to keep messages small.
// Absent hands contribute a single presence bit and no landmark payload.
type wireLandmark struct {
	_ struct{} `cbor:",toarray"`
	X float64
	Y float64
	Z float64
}

type wireFrame struct {
	_           struct{} `cbor:",toarray"`
	Seq         uint64
	TimestampNs int64
	Present     uint8
	Hands       [][]wireLandmark
}

// Encode serializes a frame into a framed wire message.
func Encode(f *hand.Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	wf := wireFrame{Seq: f.Seq, TimestampNs: f.TimestampNs}
	for i, lms := range f.Hands {
		if lms == nil {
			continue
		}
		wf.Present |= 1 << i
		wh := make([]wireLandmark, len(lms))
		for j, lm := range lms {
			wh[j] = wireLandmark{X: lm.X, Y: lm.Y, Z: lm.Z}
		}
		wf.Hands = append(wf.Hands, wh)
	}

	payload, err := cbor.Marshal(wf)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	msg := make([]byte, headerSize+len(payload))
	copy(msg, magic[:])
	binary.BigEndian.PutUint32(msg[4:headerSize], uint32(len(payload)))
	copy(msg[headerSize:], payload)
	return msg, nil
}

// Decode parses a complete wire message. It fails with a DecodeError on a
// wrong magic marker, a truncated payload, or a landmark count that is not
// exactly hand.LandmarkCount for any present hand.
func Decode(msg []byte) (*hand.Frame, error) {
	if len(msg) < headerSize {
		return nil, &DecodeError{Reason: fmt.Sprintf("message shorter than header (%d bytes)", len(msg)), Err: ErrTruncated}
	}
	if !bytes.Equal(msg[:4], magic[:]) {
		return nil, &DecodeError{Reason: fmt.Sprintf("magic %x", msg[:4]), Err: ErrBadMagic}
	}
	n := binary.BigEndian.Uint32(msg[4:headerSize])
	if n > MaxPayloadSize {
		return nil, &DecodeError{Reason: fmt.Sprintf("payload length %d", n), Err: ErrOversized}
	}
	if len(msg)-headerSize < int(n) {
		return nil, &DecodeError{Reason: fmt.Sprintf("payload has %d of %d bytes", len(msg)-headerSize, n), Err: ErrTruncated}
	}
	return decodePayload(msg[headerSize : headerSize+int(n)])
}

func decodePayload(payload []byte) (*hand.Frame, error) {
	var wf wireFrame
	if err := cbor.Unmarshal(payload, &wf); err != nil {
		return nil, &DecodeError{Reason: "bad CBOR payload", Err: err}
	}

	if wf.Present >= 1<<hand.MaxHands {
		return nil, &DecodeError{Reason: fmt.Sprintf("presence mask %#x", wf.Present), Err: ErrHandCount}
	}
	if len(wf.Hands) != bits.OnesCount8(wf.Present) {
		return nil, &DecodeError{
			Reason: fmt.Sprintf("%d hand payloads for presence mask %#x", len(wf.Hands), wf.Present),
			Err:    ErrHandCount,
		}
	}

	f := &hand.Frame{Seq: wf.Seq, TimestampNs: wf.TimestampNs}
	next := 0
	for slot := 0; slot < hand.MaxHands; slot++ {
		if wf.Present&(1<<slot) == 0 {
			continue
		}
		wh := wf.Hands[next]
		next++
		if len(wh) != hand.LandmarkCount {
			return nil, &DecodeError{
				Reason: fmt.Sprintf("hand %d has %d landmarks", slot, len(wh)),
				Err:    ErrLandmarkCount,
			}
		}
		lms := make([]hand.Landmark, hand.LandmarkCount)
		for j, lm := range wh {
			lms[j] = hand.Landmark{X: lm.X, Y: lm.Y, Z: lm.Z}
		}
		f.Hands[slot] = lms
	}
	return f, nil
}

// WriteMessage encodes a frame and writes the wire message to w.
func WriteMessage(w io.Writer, f *hand.Frame) error {
	msg, err := Encode(f)
	if err != nil {
		return err
	}
	_, err = w.Write(msg)
	return err
}

// Reader reassembles framed messages from a reliable byte stream.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// Next returns the next frame from the stream. A DecodeError means one
// message was malformed and discarded; the caller should log it and call
// Next again. Any other error is a connection-level failure.
func (r *Reader) Next() (*hand.Frame, error) {
	hdr, err := r.br.Peek(headerSize)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(hdr[:4], magic[:]) {
		skipped := r.resync()
		return nil, &DecodeError{Reason: fmt.Sprintf("bad magic, skipped %d bytes", skipped), Err: ErrBadMagic}
	}
	n := binary.BigEndian.Uint32(hdr[4:headerSize])
	if n > MaxPayloadSize {
		// Discard the header so the next call resyncs past the junk.
		_, _ = r.br.Discard(headerSize)
		return nil, &DecodeError{Reason: fmt.Sprintf("payload length %d", n), Err: ErrOversized}
	}

	msg := make([]byte, headerSize+int(n))
	if _, err := io.ReadFull(r.br, msg); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &DecodeError{Reason: "stream ended mid-message", Err: ErrTruncated}
		}
		return nil, err
	}
	return decodePayload(msg[headerSize:])
}

// resync discards bytes until the next magic marker so one corrupted message
// does not poison the rest of the stream.
func (r *Reader) resync() int {
	skipped := 0
	for {
		b, err := r.br.Peek(len(magic))
		if err != nil || bytes.Equal(b, magic[:]) {
			return skipped
		}
		_, _ = r.br.Discard(1)
		skipped++
	}
}
