package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Encode serializes msg as one complete frame.
func Encode(msg Message) []byte {
	h := HeaderOf(msg)
	buf := make([]byte, h.Length)
	buf[0] = byte(h.Type)
	binary.BigEndian.PutUint32(buf[4:HeaderSize], h.Length)
	msg.marshalBody(buf[HeaderSize:])
	return buf
}

// Send writes msg to w in a single Write call so that concurrent senders
// sharing a connection do not interleave partial frames.
func Send(w io.Writer, msg Message) error {
	if _, err := w.Write(Encode(msg)); err != nil {
		return fmt.Errorf("protocol: write %s: %w", msg.Type(), err)
	}
	return nil
}

// ParseHeader decodes the first HeaderSize bytes of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrMalformedHeader
	}
	h := Header{
		Type:   MessageType(b[0]),
		Length: binary.BigEndian.Uint32(b[4:HeaderSize]),
	}
	if h.Length < HeaderSize {
		return Header{}, fmt.Errorf("%w: length %d", ErrMalformedHeader, h.Length)
	}
	return h, nil
}

// ReadFrame reads one complete frame (header and body) from r.
// Frames longer than capacity are rejected before their body is read.
func ReadFrame(r io.Reader, capacity int) ([]byte, error) {
	head := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrConnectionClosed
		}
		return nil, fmt.Errorf("protocol: read header: %w", err)
	}
	h, err := ParseHeader(head)
	if err != nil {
		return nil, err
	}
	if int64(h.Length) > int64(capacity) {
		return nil, fmt.Errorf("%w: %d bytes (capacity %d)", ErrMessageTooLarge, h.Length, capacity)
	}

	frame := make([]byte, h.Length)
	copy(frame, head)
	if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s body", ErrShortRead, h.Type)
		}
		return nil, fmt.Errorf("protocol: read body: %w", err)
	}
	return frame, nil
}

// Decode interprets a complete frame. The body length must match the fixed
// size of the frame's type exactly.
func Decode(frame []byte) (Message, error) {
	h, err := ParseHeader(frame)
	if err != nil {
		return nil, err
	}
	body := frame[HeaderSize:]
	size, ok := BodySize(h.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(h.Type))
	}
	if len(body) != size || int(h.Length) != len(frame) {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrBodySize, h.Type, len(body), size)
	}
	msg := newMessage(h.Type)
	msg.unmarshalBody(body)
	return msg, nil
}

// Receive reads and decodes one frame from r.
func Receive(r io.Reader, capacity int) (Message, error) {
	frame, err := ReadFrame(r, capacity)
	if err != nil {
		return nil, err
	}
	return Decode(frame)
}
