// Package ir provides the document value model shared by every backend.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - IRValue is sealed; type switches over it are exhaustive
//   - Numbers keep their JSON precision (int64, big integer, double, decimal)
//   - Document identifiers live beside the body, never inside it
//   - Fingerprints use RFC 8785 canonical JSON, which rejects floats and null
package ir
