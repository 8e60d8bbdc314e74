// Package repo holds the repository context: the single owner of a
// repository's current graph.
//
// Every mutation follows the same path. Clone the current graph, edit the
// clone, run the governance gate over the whole candidate, then swap it in.
// A rejected candidate leaves the current graph, the revisions and the
// history untouched. Undo and redo entries are zstd-compressed snapshot
// documents and pass through the gate like any other candidate.
package repo
