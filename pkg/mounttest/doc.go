// Package mounttest provides helpers for testing code that produces or
// consumes shadow trees and mutation lists.
//
// The node builders cut the ceremony out of constructing test trees:
//
//	root := mounttest.NewNode(1, "Root").
//	    Children(
//	        mounttest.View(2, "Label"),
//	        mounttest.NewNode(3, "Overlay").Order(10).Build(),
//	    ).
//	    Build()
//
// The Harness drives a tree through commits the way the runtime would,
// verifying after each commit that the diff applies cleanly to a stub
// hierarchy and reproduces the new generation:
//
//	h := mounttest.NewHarness(t, root)
//	mutations := h.Commit(func(r *shadow.Node) *shadow.Node {
//	    return shadow.CloneTreeWith(r, 2, func(n *shadow.Node) *shadow.Node {
//	        return n.Clone(shadow.WithProps(shadow.Props{"text": "hi"}))
//	    })
//	})
//	mounttest.ExpectMutations(t, mutations, "Update")
package mounttest
