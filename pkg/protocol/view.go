package protocol

import (
	"errors"
	"fmt"
	"sort"

	"github.com/stratum-ui/stratum/pkg/shadow"
)

// Prop value kind markers. One byte precedes every prop value.
const (
	propNil    byte = 0x00
	propBool   byte = 0x01
	propInt    byte = 0x02 // ZigZag varint, decodes as int64
	propFloat  byte = 0x03 // IEEE 754 float64, big-endian
	propString byte = 0x04 // length-prefixed UTF-8
)

// View encoding errors.
var (
	ErrUnsupportedProp = errors.New("protocol: unsupported prop value type")
	ErrTagOutOfRange   = errors.New("protocol: view tag out of range")
	ErrInvalidPropKind = errors.New("protocol: invalid prop kind")
)

// EncodeViewTo encodes a view snapshot using the provided encoder.
//
// Wire format:
//
//	tag        svarint
//	component  string
//	traits     1 byte
//	props      varint count, then per prop: key string, kind byte, value
//	layout     1 byte presence, then frame as 4 float64 when present
//
// Props are written in sorted key order so equal views produce equal
// bytes. The event emitter is a process identity and is not encoded.
func EncodeViewTo(e *Encoder, v shadow.View) error {
	e.WriteTag(v.Tag)
	e.WriteString(v.Component)
	e.WriteByte(byte(v.Traits))

	if err := encodePropsTo(e, v.Props); err != nil {
		return err
	}

	if v.Layout == shadow.EmptyLayoutMetrics {
		e.WriteByte(0x00)
	} else {
		e.WriteByte(0x01)
		f := v.Layout.Frame
		e.WriteFloat64(f.Origin.X)
		e.WriteFloat64(f.Origin.Y)
		e.WriteFloat64(f.Size.Width)
		e.WriteFloat64(f.Size.Height)
	}
	return nil
}

func encodePropsTo(e *Encoder, props shadow.Props) error {
	e.WriteUvarint(uint64(len(props)))
	if len(props) == 0 {
		return nil
	}

	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		e.WriteString(key)
		switch val := props[key].(type) {
		case nil:
			e.WriteByte(propNil)
		case bool:
			e.WriteByte(propBool)
			e.WriteBool(val)
		case int:
			e.WriteByte(propInt)
			e.WriteSvarint(int64(val))
		case int32:
			e.WriteByte(propInt)
			e.WriteSvarint(int64(val))
		case int64:
			e.WriteByte(propInt)
			e.WriteSvarint(val)
		case float32:
			e.WriteByte(propFloat)
			e.WriteFloat64(float64(val))
		case float64:
			e.WriteByte(propFloat)
			e.WriteFloat64(val)
		case string:
			e.WriteByte(propString)
			e.WriteString(val)
		default:
			return fmt.Errorf("%w: key %q holds %T", ErrUnsupportedProp, key, props[key])
		}
	}
	return nil
}

// DecodeViewFrom decodes a view snapshot from a decoder.
//
// The returned view has no event emitter, and integer props come back as
// int64 regardless of the width they were encoded from.
func DecodeViewFrom(d *Decoder) (shadow.View, error) {
	var v shadow.View

	tag, err := d.ReadTag()
	if err != nil {
		return v, err
	}
	v.Tag = tag

	v.Component, err = d.ReadString()
	if err != nil {
		return v, err
	}

	traits, err := d.ReadByte()
	if err != nil {
		return v, err
	}
	v.Traits = shadow.Traits(traits)

	v.Props, err = decodePropsFrom(d)
	if err != nil {
		return v, err
	}

	present, err := d.ReadByte()
	if err != nil {
		return v, err
	}
	if present == 0x00 {
		v.Layout = shadow.EmptyLayoutMetrics
		return v, nil
	}

	var f shadow.Rect
	if f.Origin.X, err = d.ReadFloat64(); err != nil {
		return v, err
	}
	if f.Origin.Y, err = d.ReadFloat64(); err != nil {
		return v, err
	}
	if f.Size.Width, err = d.ReadFloat64(); err != nil {
		return v, err
	}
	if f.Size.Height, err = d.ReadFloat64(); err != nil {
		return v, err
	}
	v.Layout = shadow.LayoutMetrics{Frame: f}
	return v, nil
}

func decodePropsFrom(d *Decoder) (shadow.Props, error) {
	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	if count > MaxPropsPerView {
		return nil, ErrCollectionTooLarge
	}

	props := make(shadow.Props, count)
	for i := 0; i < count; i++ {
		key, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		kind, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		switch kind {
		case propNil:
			props[key] = nil
		case propBool:
			val, err := d.ReadBool()
			if err != nil {
				return nil, err
			}
			props[key] = val
		case propInt:
			val, err := d.ReadSvarint()
			if err != nil {
				return nil, err
			}
			props[key] = val
		case propFloat:
			val, err := d.ReadFloat64()
			if err != nil {
				return nil, err
			}
			props[key] = val
		case propString:
			val, err := d.ReadString()
			if err != nil {
				return nil, err
			}
			props[key] = val
		default:
			return nil, fmt.Errorf("%w: 0x%02X for key %q", ErrInvalidPropKind, kind, key)
		}
	}
	return props, nil
}

// EncodeView encodes a view snapshot to bytes.
func EncodeView(v shadow.View) ([]byte, error) {
	e := NewEncoder()
	if err := EncodeViewTo(e, v); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// DecodeView decodes a view snapshot from bytes.
func DecodeView(data []byte) (shadow.View, error) {
	d := NewDecoder(data)
	return DecodeViewFrom(d)
}
