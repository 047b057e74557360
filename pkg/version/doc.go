// Package version provides plugin versions and requires designators.
//
// A designator names a plugin and optionally constrains its version:
//
//	magic
//	magic (>>1.0)
//	magic (>=1.2, !=1.2.2)
//
// Operators are "<<", "<=", "==", "!=", ">=" and ">>". Versions are written
// as major[.minor[.patch]] with missing parts read as zero.
package version
