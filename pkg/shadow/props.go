package shadow

import "reflect"

// Props is the opaque styling/configuration payload of a node. The engine
// never interprets individual keys; it only needs equality to decide
// whether a view must be updated in place.
//
// A props map is treated as immutable once attached to a node: generations
// that don't change props share the same map, and a generation that does
// change them attaches a fresh one.
type Props map[string]any

// Equal reports whether p and o carry the same keys with equal values.
func (p Props) Equal(o Props) bool {
	if len(p) != len(o) {
		return false
	}
	for key, val := range p {
		other, ok := o[key]
		if !ok || !valueEqual(val, other) {
			return false
		}
	}
	return true
}

// valueEqual compares two prop values.
func valueEqual(a, b any) bool {
	// Fast path for common types
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
		return false
	case int:
		if bv, ok := b.(int); ok {
			return av == bv
		}
		return false
	case int64:
		if bv, ok := b.(int64); ok {
			return av == bv
		}
		return false
	case float64:
		if bv, ok := b.(float64); ok {
			return av == bv
		}
		return false
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
		return false
	case nil:
		return b == nil
	}
	// Fallback to reflect for complex types
	return reflect.DeepEqual(a, b)
}

// EventEmitter routes UI events for one logical element. Only its identity
// matters to the engine: clones share their emitter through the family, and
// an emitter swap must surface as a view update so the mount layer can
// re-target event delivery.
type EventEmitter struct {
	tag Tag
}

// NewEventEmitter returns an emitter for the element identified by tag.
func NewEventEmitter(tag Tag) *EventEmitter {
	return &EventEmitter{tag: tag}
}

// Tag returns the tag of the element this emitter belongs to.
func (e *EventEmitter) Tag() Tag {
	if e == nil {
		return 0
	}
	return e.tag
}
