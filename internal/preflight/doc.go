// Package preflight provides readiness checks for the tools and
// directories discbatch depends on.
//
// The convert and watch commands run these before the first image so a
// missing encoder or unwritable output directory stops the batch early.
// The check command renders the same results as a status table.
package preflight
