// Package acquire turns a work identifier into a locally stored PDF.
//
// A run resolves the album through the source transport, downloads its pages
// into <data_dir>/<title>/, assembles <data_dir>/pdf/<title>.pdf and removes
// the page files once the artifact exists. An artifact already on disk is
// reused without touching the network beyond the album lookup. Concurrent
// requests for the same identifier share one run; the shared run is detached
// from any single caller's context so abandoning a request never aborts a
// download other callers may be waiting on.
package acquire
