// Package scene loads declarative YAML scenarios for driving a shadow
// tree through a scripted sequence of commits.
//
// A scene file names an initial tree and a list of steps (set props,
// move a subtree, insert, remove). The CLI's serve and bench commands
// replay scenes to produce deterministic mount-stream workloads; tests
// use them to build trees without hand-writing node constructors.
//
// Every step goes through shadow.Tree.Commit, so scenes exercise the
// same copy-on-write discipline a real render stage would.
package scene
