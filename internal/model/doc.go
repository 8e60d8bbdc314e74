// Package model provides the element and relationship types of the
// architecture graph.
//
// This package contains value types only. Every other internal package
// imports model; model imports nothing internal.
//
// Key constraints:
//   - Attribute values are a sealed set (Null, String, Int, Bool, Array, Object); no floats
//   - Soft delete is the Status enum, never an attribute in memory
//   - Wire records carry attributes.deleted = true for tombstoned elements
//   - Clone is always structural; nothing is deep-copied by serializing
package model
