package shadow

import "fmt"

// View is a node's mount-facing projection: the snapshot of everything the
// mount layer can observe about it. Views are plain values; the differ
// compares them to decide whether a mounted view needs an update, and
// mutation lists carry them across the mount boundary.
type View struct {
	Tag          Tag
	Component    string
	Traits       Traits
	Props        Props
	EventEmitter *EventEmitter
	Layout       LayoutMetrics
}

// View returns the node's current snapshot.
func (n *Node) View() View {
	return View{
		Tag:          n.family.tag,
		Component:    n.family.component,
		Traits:       n.traits,
		Props:        n.props,
		EventEmitter: n.family.emitter,
		Layout:       n.layout,
	}
}

// Equal reports whether no observable field differs between v and o.
// Emitters compare by identity; props by content.
func (v View) Equal(o View) bool {
	return v.Tag == o.Tag &&
		v.Component == o.Component &&
		v.Traits == o.Traits &&
		v.EventEmitter == o.EventEmitter &&
		v.Layout == o.Layout &&
		v.Props.Equal(o.Props)
}

// String returns a short debug form, e.g. "[Label #12 @(8,24) 100x17]".
func (v View) String() string {
	f := v.Layout.Frame
	return fmt.Sprintf("[%s #%d @(%g,%g) %gx%g]",
		v.Component, v.Tag, f.Origin.X, f.Origin.Y, f.Size.Width, f.Size.Height)
}
