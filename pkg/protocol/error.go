package protocol

import "fmt"

// ErrorCode identifies an error condition on a mount stream.
type ErrorCode uint16

const (
	ErrCodeUnknown          ErrorCode = 0x0000
	ErrCodeMalformedFrame   ErrorCode = 0x0001 // Frame or payload failed to decode
	ErrCodeUnsupportedFrame ErrorCode = 0x0002 // Frame type not valid in this direction or state
	ErrCodeRevisionGone     ErrorCode = 0x0003 // Requested revision aged out of history
	ErrCodeStreamState      ErrorCode = 0x0004 // Message arrived before or instead of hello
	ErrCodeInternal         ErrorCode = 0x00FF // Server-side failure
)

// String returns the string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrCodeUnknown:
		return "Unknown"
	case ErrCodeMalformedFrame:
		return "MalformedFrame"
	case ErrCodeUnsupportedFrame:
		return "UnsupportedFrame"
	case ErrCodeRevisionGone:
		return "RevisionGone"
	case ErrCodeStreamState:
		return "StreamState"
	case ErrCodeInternal:
		return "Internal"
	default:
		return fmt.Sprintf("ErrorCode(0x%04X)", uint16(ec))
	}
}

// ErrorMessage reports an error across the stream. Fatal errors are
// followed by connection close; non-fatal ones leave the stream usable.
type ErrorMessage struct {
	Code    ErrorCode
	Message string
	Fatal   bool
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return fmt.Sprintf("mount stream error %s: %s (fatal)", em.Code, em.Message)
	}
	return fmt.Sprintf("mount stream error %s: %s", em.Code, em.Message)
}

// EncodeError encodes an ErrorMessage to bytes.
func EncodeError(em *ErrorMessage) []byte {
	e := NewEncoder()
	EncodeErrorTo(e, em)
	return e.Bytes()
}

// EncodeErrorTo encodes an ErrorMessage using the provided encoder.
func EncodeErrorTo(e *Encoder, em *ErrorMessage) {
	e.WriteUint16(uint16(em.Code))
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
}

// DecodeError decodes an ErrorMessage from bytes.
func DecodeError(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	return DecodeErrorFrom(d)
}

// DecodeErrorFrom decodes an ErrorMessage from a decoder.
func DecodeErrorFrom(d *Decoder) (*ErrorMessage, error) {
	em := &ErrorMessage{}

	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	em.Code = ErrorCode(code)

	em.Message, err = d.ReadString()
	if err != nil {
		return nil, err
	}

	em.Fatal, err = d.ReadBool()
	if err != nil {
		return nil, err
	}
	return em, nil
}
