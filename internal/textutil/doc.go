// Package textutil provides text processing helpers for turning remote titles
// into safe filesystem names.
//
// SanitizeTitle produces the single path segment used for a work's page
// directory and its PDF artifact. SanitizeToken produces lowercase tokens for
// identifiers such as notification tags.
package textutil
