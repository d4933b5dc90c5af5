package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stratum-ui/stratum/pkg/shadow"
)

// wireView builds a view snapshot the way it exists after decoding: no
// event emitter, int64 integers.
func wireView(tag shadow.Tag) shadow.View {
	return shadow.View{
		Tag:       tag,
		Component: "Label",
		Traits:    shadow.TraitFormsView,
		Props: shadow.Props{
			"text":    "hello",
			"weight":  int64(600),
			"opacity": 0.5,
			"wrap":    true,
			"badge":   nil,
		},
		Layout: shadow.LayoutMetrics{
			Frame: shadow.Rect{
				Origin: shadow.Point{X: 8, Y: 24},
				Size:   shadow.Size{Width: 100, Height: 17},
			},
		},
	}
}

// wireViewEqual compares the fields that travel. Emitters never do.
func wireViewEqual(a, b shadow.View) bool {
	return a.Tag == b.Tag &&
		a.Component == b.Component &&
		a.Traits == b.Traits &&
		a.Layout == b.Layout &&
		a.Props.Equal(b.Props)
}

func TestViewRoundTrip(t *testing.T) {
	want := wireView(12)

	data, err := EncodeView(want)
	if err != nil {
		t.Fatalf("EncodeView() error = %v", err)
	}

	got, err := DecodeView(data)
	if err != nil {
		t.Fatalf("DecodeView() error = %v", err)
	}
	if !wireViewEqual(got, want) {
		t.Errorf("DecodeView() = %v, want %v", got, want)
	}
	if got.EventEmitter != nil {
		t.Errorf("decoded view has an emitter; emitters must not travel")
	}
}

func TestViewEncodingIsDeterministic(t *testing.T) {
	// Same view, two encodes, identical bytes. Map iteration order must
	// not leak into the wire.
	v := wireView(7)

	first, err := EncodeView(v)
	if err != nil {
		t.Fatalf("EncodeView() error = %v", err)
	}
	for i := 0; i < 16; i++ {
		again, err := EncodeView(v)
		if err != nil {
			t.Fatalf("EncodeView() error = %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encode %d produced different bytes:\n%x\n%x", i, first, again)
		}
	}
}

func TestViewEmptyLayoutRoundTrip(t *testing.T) {
	want := shadow.View{Tag: 3, Component: "RawText", Layout: shadow.EmptyLayoutMetrics}

	data, err := EncodeView(want)
	if err != nil {
		t.Fatalf("EncodeView() error = %v", err)
	}
	got, err := DecodeView(data)
	if err != nil {
		t.Fatalf("DecodeView() error = %v", err)
	}
	if got.Layout != shadow.EmptyLayoutMetrics {
		t.Errorf("Layout = %v, want EmptyLayoutMetrics", got.Layout)
	}
}

func TestViewNoPropsRoundTrip(t *testing.T) {
	want := shadow.View{Tag: 5, Component: "View"}

	data, err := EncodeView(want)
	if err != nil {
		t.Fatalf("EncodeView() error = %v", err)
	}
	got, err := DecodeView(data)
	if err != nil {
		t.Fatalf("DecodeView() error = %v", err)
	}
	if got.Props != nil {
		t.Errorf("Props = %v, want nil", got.Props)
	}
}

func TestViewIntPropsWidenToInt64(t *testing.T) {
	v := shadow.View{
		Tag:       1,
		Component: "View",
		Props:     shadow.Props{"narrow": int(42), "wide": int32(-7)},
	}

	data, err := EncodeView(v)
	if err != nil {
		t.Fatalf("EncodeView() error = %v", err)
	}
	got, err := DecodeView(data)
	if err != nil {
		t.Fatalf("DecodeView() error = %v", err)
	}
	if val, ok := got.Props["narrow"].(int64); !ok || val != 42 {
		t.Errorf("Props[narrow] = %v (%T), want int64 42", got.Props["narrow"], got.Props["narrow"])
	}
	if val, ok := got.Props["wide"].(int64); !ok || val != -7 {
		t.Errorf("Props[wide] = %v (%T), want int64 -7", got.Props["wide"], got.Props["wide"])
	}
}

func TestViewUnsupportedPropRejected(t *testing.T) {
	v := shadow.View{
		Tag:       1,
		Component: "View",
		Props:     shadow.Props{"handler": func() {}},
	}

	if _, err := EncodeView(v); !errors.Is(err, ErrUnsupportedProp) {
		t.Errorf("EncodeView() error = %v, want %v", err, ErrUnsupportedProp)
	}
}

func TestViewInvalidPropKindRejected(t *testing.T) {
	e := NewEncoder()
	e.WriteSvarint(1)     // tag
	e.WriteString("View") // component
	e.WriteByte(0)        // traits
	e.WriteUvarint(1)     // one prop
	e.WriteString("k")
	e.WriteByte(0x7E) // no such kind

	if _, err := DecodeView(e.Bytes()); !errors.Is(err, ErrInvalidPropKind) {
		t.Errorf("DecodeView() error = %v, want %v", err, ErrInvalidPropKind)
	}
}

func TestViewTagOutOfRangeRejected(t *testing.T) {
	e := NewEncoder()
	e.WriteSvarint(1 << 40)

	if _, err := DecodeView(e.Bytes()); !errors.Is(err, ErrTagOutOfRange) {
		t.Errorf("DecodeView() error = %v, want %v", err, ErrTagOutOfRange)
	}
}

func TestViewTruncatedLayout(t *testing.T) {
	v := wireView(9)
	data, err := EncodeView(v)
	if err != nil {
		t.Fatalf("EncodeView() error = %v", err)
	}

	// Chop into the layout floats.
	if _, err := DecodeView(data[:len(data)-5]); err == nil {
		t.Errorf("DecodeView() on truncated input succeeded, want error")
	}
}
