package protocol

import (
	"bytes"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	want := NewFrameWithFlags(FrameTransaction, FlagSnapshot, []byte{0xCA, 0xFE})

	got, err := DecodeFrame(want.Encode())
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if got.Type != FrameTransaction {
		t.Errorf("Type = %v, want Transaction", got.Type)
	}
	if !got.Flags.Has(FlagSnapshot) {
		t.Errorf("Flags = %v, want FlagSnapshot set", got.Flags)
	}
	if !bytes.Equal(got.Payload, []byte{0xCA, 0xFE}) {
		t.Errorf("Payload = %x, want cafe", got.Payload)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	f := NewFrame(FrameResyncRequest, nil)

	data := f.Encode()
	if len(data) != FrameHeaderSize {
		t.Errorf("Encode() length = %d, want %d", len(data), FrameHeaderSize)
	}

	got, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if len(got.Payload) != 0 {
		t.Errorf("Payload length = %d, want 0", len(got.Payload))
	}
}

func TestFrameHeaderLayout(t *testing.T) {
	f := NewFrameWithFlags(FrameError, FlagSnapshot, make([]byte, 0x0102))

	data := f.Encode()
	if data[0] != byte(FrameError) {
		t.Errorf("header[0] = %#x, want frame type", data[0])
	}
	if data[1] != byte(FlagSnapshot) {
		t.Errorf("header[1] = %#x, want flags", data[1])
	}
	// Length is big-endian across four bytes.
	if data[2] != 0 || data[3] != 0 || data[4] != 0x01 || data[5] != 0x02 {
		t.Errorf("header length bytes = %x, want 00000102", data[2:6])
	}
}

func TestDecodeFrameHeaderOnly(t *testing.T) {
	f := NewFrame(FrameHello, []byte("abc"))

	ft, flags, length, err := DecodeFrameHeader(f.Encode())
	if err != nil {
		t.Fatalf("DecodeFrameHeader() error = %v", err)
	}
	if ft != FrameHello || flags != 0 || length != 3 {
		t.Errorf("DecodeFrameHeader() = %v, %v, %d, want Hello, 0, 3", ft, flags, length)
	}
}

func TestDecodeFrameShortData(t *testing.T) {
	if _, err := DecodeFrame([]byte{0x01, 0x00}); err != io.ErrUnexpectedEOF {
		t.Errorf("DecodeFrame() error = %v, want %v", err, io.ErrUnexpectedEOF)
	}

	// Header claims 10 payload bytes, provides 2.
	f := NewFrame(FrameTransaction, make([]byte, 10))
	data := f.Encode()
	if _, err := DecodeFrame(data[:FrameHeaderSize+2]); err != io.ErrUnexpectedEOF {
		t.Errorf("DecodeFrame() error = %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestDecodeFramePayloadTooLarge(t *testing.T) {
	// Hand-built header claiming more than MaxPayloadSize.
	header := []byte{byte(FrameTransaction), 0, 0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := DecodeFrame(header); err != ErrFrameTooLarge {
		t.Errorf("DecodeFrame() error = %v, want %v", err, ErrFrameTooLarge)
	}
}

func TestFramePayloadIsCopied(t *testing.T) {
	raw := NewFrame(FrameHello, []byte{1, 2, 3}).Encode()

	got, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	raw[FrameHeaderSize] = 9
	if got.Payload[0] != 1 {
		t.Errorf("Payload aliases input; expected a copy")
	}
}

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer

	first := NewFrameWithFlags(FrameTransaction, FlagSnapshot, []byte("snapshot"))
	second := NewFrame(FrameError, []byte("boom"))
	if err := WriteFrame(&buf, first); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if err := WriteFrame(&buf, second); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	got1, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	got2, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}

	if got1.Type != FrameTransaction || string(got1.Payload) != "snapshot" {
		t.Errorf("first frame = %v %q", got1.Type, got1.Payload)
	}
	if !got1.Flags.Has(FlagSnapshot) {
		t.Errorf("first frame lost FlagSnapshot")
	}
	if got2.Type != FrameError || string(got2.Payload) != "boom" {
		t.Errorf("second frame = %v %q", got2.Type, got2.Payload)
	}

	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Errorf("ReadFrame() on empty stream error = %v, want %v", err, io.EOF)
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	f := NewFrame(FrameTransaction, make([]byte, MaxPayloadSize+1))

	var buf bytes.Buffer
	if err := WriteFrame(&buf, f); err != ErrFrameTooLarge {
		t.Errorf("WriteFrame() error = %v, want %v", err, ErrFrameTooLarge)
	}
	if buf.Len() != 0 {
		t.Errorf("WriteFrame() wrote %d bytes before failing, want 0", buf.Len())
	}
}

func TestFrameTypeStrings(t *testing.T) {
	tests := []struct {
		ft   FrameType
		want string
	}{
		{FrameHello, "Hello"},
		{FrameTransaction, "Transaction"},
		{FrameResyncRequest, "ResyncRequest"},
		{FrameResyncReply, "ResyncReply"},
		{FrameError, "Error"},
		{FrameType(0x7F), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.ft.String(); got != tt.want {
			t.Errorf("FrameType(%d).String() = %q, want %q", tt.ft, got, tt.want)
		}
	}
}
