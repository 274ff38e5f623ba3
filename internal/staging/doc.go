// Package staging reclaims per-work page directories left under the data
// directory by interrupted or failed acquisitions.
//
// Work directories hold downloaded pages until the PDF is assembled. A
// successful run removes them; a failed run leaves them so the next attempt can
// overwrite them in place. CleanStale removes directories untouched for longer
// than a cutoff, and CleanCompleted removes directories whose PDF already
// exists. Reserved directories (the PDF output directory, the log directory
// when it lives under the data directory) are never touched.
package staging
