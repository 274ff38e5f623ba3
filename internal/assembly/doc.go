// Package assembly turns a directory of page images into a single PDF.
//
// Pages are ordered by the numeric prefix of their file names. Each page of
// the document is sized to its image at 96 dpi. JPEG files are embedded as
// is; PNG, GIF and WebP pages are decoded and re-encoded as 8-bit PNG so every
// variant embeds cleanly. The document is written through a temp file and
// renamed into place.
package assembly
