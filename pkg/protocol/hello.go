package protocol

import "fmt"

// HelloStatus represents the result of stream setup.
type HelloStatus uint8

const (
	HelloOK              HelloStatus = 0x00
	HelloVersionMismatch HelloStatus = 0x01
	HelloServerBusy      HelloStatus = 0x02
	HelloInternalError   HelloStatus = 0x03
)

// String returns the string representation of the hello status.
func (hs HelloStatus) String() string {
	switch hs {
	case HelloOK:
		return "OK"
	case HelloVersionMismatch:
		return "VersionMismatch"
	case HelloServerBusy:
		return "ServerBusy"
	case HelloInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// ProtocolVersion represents a protocol version as major.minor.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// CurrentVersion is the current protocol version.
var CurrentVersion = ProtocolVersion{Major: 1, Minor: 0}

// ClientHello is sent by the client after the WebSocket connection is
// established. LastRevision is the newest revision the client has applied;
// zero means it holds nothing and needs a snapshot.
type ClientHello struct {
	Version      ProtocolVersion
	LastRevision uint64
}

// ServerHello is the server's response to ClientHello. Revision is the
// server's current revision at accept time; frames that follow advance
// from whatever base the server chose (the client's LastRevision when it
// is still covered by history, zero otherwise).
type ServerHello struct {
	Status     HelloStatus
	Revision   uint64
	ServerTime uint64 // Unix milliseconds
}

// EncodeClientHello encodes a ClientHello to bytes.
func EncodeClientHello(ch *ClientHello) []byte {
	e := NewEncoder()
	EncodeClientHelloTo(e, ch)
	return e.Bytes()
}

// EncodeClientHelloTo encodes a ClientHello using the provided encoder.
func EncodeClientHelloTo(e *Encoder, ch *ClientHello) {
	e.WriteByte(ch.Version.Major)
	e.WriteByte(ch.Version.Minor)
	e.WriteUvarint(ch.LastRevision)
}

// DecodeClientHello decodes a ClientHello from bytes.
func DecodeClientHello(data []byte) (*ClientHello, error) {
	d := NewDecoder(data)
	return DecodeClientHelloFrom(d)
}

// DecodeClientHelloFrom decodes a ClientHello from a decoder.
func DecodeClientHelloFrom(d *Decoder) (*ClientHello, error) {
	ch := &ClientHello{}

	major, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	minor, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	ch.Version = ProtocolVersion{Major: major, Minor: minor}

	ch.LastRevision, err = d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// EncodeServerHello encodes a ServerHello to bytes.
func EncodeServerHello(sh *ServerHello) []byte {
	e := NewEncoder()
	EncodeServerHelloTo(e, sh)
	return e.Bytes()
}

// EncodeServerHelloTo encodes a ServerHello using the provided encoder.
func EncodeServerHelloTo(e *Encoder, sh *ServerHello) {
	e.WriteByte(byte(sh.Status))
	e.WriteUvarint(sh.Revision)
	e.WriteUint64(sh.ServerTime)
}

// DecodeServerHello decodes a ServerHello from bytes.
func DecodeServerHello(data []byte) (*ServerHello, error) {
	d := NewDecoder(data)
	return DecodeServerHelloFrom(d)
}

// DecodeServerHelloFrom decodes a ServerHello from a decoder.
func DecodeServerHelloFrom(d *Decoder) (*ServerHello, error) {
	sh := &ServerHello{}

	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	sh.Status = HelloStatus(status)

	sh.Revision, err = d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	sh.ServerTime, err = d.ReadUint64()
	if err != nil {
		return nil, err
	}
	return sh, nil
}
