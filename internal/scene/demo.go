package scene

// demoYAML is the built-in scenario used by "stratum serve --demo" and as
// the default bench workload. It touches every mutation kind: prop and
// frame updates, inserts, a cross-parent move, removals, plus a
// transparent wrapper and an order-hinted overlay.
const demoYAML = `
name: dashboard
root:
  tag: 1
  component: Root
  traits: [view, stacking]
  frame: [0, 0, 390, 844]
  children:
    - tag: 2
      component: Header
      traits: [view, stacking]
      props: {title: "Dashboard"}
      frame: [0, 0, 390, 96]
    - tag: 3
      component: ListWrapper
      frame: [0, 96, 390, 660]
      children:
        - tag: 10
          component: Row
          traits: [view, stacking]
          props: {label: "Alpha", unread: 2}
          frame: [0, 0, 390, 64]
        - tag: 11
          component: Row
          traits: [view, stacking]
          props: {label: "Beta", unread: 0}
          frame: [0, 64, 390, 64]
        - tag: 12
          component: Row
          traits: [view, stacking]
          props: {label: "Gamma", unread: 7}
          frame: [0, 128, 390, 64]
    - tag: 4
      component: Toast
      traits: [view, stacking]
      order: 100
      props: {visible: false}
      frame: [20, 760, 350, 48]
steps:
  - name: retitle header
    setProps: {tag: 2, props: {title: "Dashboard (3)"}}
  - name: read gamma
    setProps: {tag: 12, props: {label: "Gamma", unread: 0}}
  - name: add delta row
    insert:
      parent: 3
      index: 3
      node:
        tag: 13
        component: Row
        traits: [view, stacking]
        props: {label: "Delta", unread: 1}
        frame: [0, 192, 390, 64]
  - name: promote gamma
    move: {tag: 12, parent: 3, index: 0}
  - name: reflow rows
    setFrame: {tag: 12, frame: [0, 0, 390, 64]}
  - name: show toast
    setProps: {tag: 4, props: {visible: true, text: "Synced"}}
  - name: drop beta
    remove: {tag: 11}
  - name: hide toast
    setProps: {tag: 4, props: {visible: false}}
`

// Demo returns the built-in demo scene.
func Demo() *Scene {
	s, err := Parse([]byte(demoYAML))
	if err != nil {
		panic("scene: demo scene invalid: " + err.Error())
	}
	return s
}
