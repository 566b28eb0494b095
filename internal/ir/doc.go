// Package ir provides the constrained value types carried by statement
// parameter slots, together with their canonical JSON encoding and the
// content fingerprint of a rendered statement.
//
// Key design constraints:
//   - NO float types: numbers are int64
//   - Null is a first-class value (SQL NULL)
//   - Canonical JSON follows RFC 8785 key ordering with NFC strings
//
// This package imports nothing internal.
package ir
