// Package staging owns the per-image scratch locations: the <image>.VOBS
// work directory holding intermediates and the <image>.mylist.txt concat
// list. It also sweeps leftovers from interrupted runs.
package staging
