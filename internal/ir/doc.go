// Package ir provides the foundation types shared by every mappa package.
//
// This package imports nothing internal. It holds:
//   - sealed value types used to describe constructs structurally
//   - RFC 8785 canonical JSON and domain-separated SHA-256 signatures
//   - IRI normalization and resolution against a base locator
//   - the TMDM published subject identifiers the engine relies on
//
// Key design constraints:
//   - NO float types anywhere - signatures must be reproducible
//   - every identifier is normalized with NormalizeIRI before it is stored or compared
//   - scopes and other unordered sets are encoded with IntSet (sorted, deduplicated)
package ir
