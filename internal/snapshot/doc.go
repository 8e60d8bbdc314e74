// Package snapshot converts graphs to and from the versioned JSON document
//
//	{ version, metadata, objects: [{id,type,attributes}],
//	  relationships: [{id,fromId,toId,type,attributes}], updatedAt }
//
// Tombstoned elements are written with attributes.deleted = true. Decoding
// runs the element and relationship stores' own validation, accepting
// historical edges to tombstoned elements.
package snapshot
