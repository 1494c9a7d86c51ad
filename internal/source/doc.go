// Package source loads raw CSV and JSON fitness exports into canonical
// collections.
//
// Loaders report failures as *LoadError and always return empty
// collections alongside an error, so a caller that only looks at the data
// still sees a usable result.
package source
