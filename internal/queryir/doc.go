// Package queryir defines the portable query fragment used to read and
// delete icon cache rows.
//
// Queries are built from a small sealed set of predicates so that the store
// never accepts free-form SQL from callers. Backends (see querysql) compile
// the IR to parameterized statements; column names are checked against an
// allowlist before compilation because they are the only interpolated part.
package queryir
