// Package records turns fetched Baserow rows into validated webhook records.
//
// Three steps run in order over the rows of one fetch:
//
//   - Filter keeps rows whose status equals the target, reading the status
//     through a StatusExtractor so scalar and single-select encodings share
//     one comparison.
//   - ValidateDomain normalizes and checks the domain-bearing field.
//   - Builder emits one Record per surviving row and counts what it dropped.
package records
