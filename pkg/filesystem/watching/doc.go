// Package watching translates raw filesystem notifications into a stream of
// semantic change events for a tree whose set of interesting entries changes
// over time.
//
// An Engine subscribes to every directory of the tree that its Provider
// considers allowed, eagerly subscribes to directories as they're created, and
// reports a change whenever a notification names a file that was allowed in
// either the current or the previous provider snapshot. Events are delivered
// over a Queue, which is unbounded and preserves emission order.
package watching
