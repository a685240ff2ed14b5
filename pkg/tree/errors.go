package tree

import "errors"

var (
	// ErrDuplicateID is returned when adding a node whose id is already live.
	ErrDuplicateID = errors.New("duplicate identifier")
	// ErrNotFound is returned when an operation references an unknown id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRelationship is returned when a parent link does not exist or
	// would break the tree (a second parent, a cycle, or a non-detached add).
	ErrInvalidRelationship = errors.New("invalid relationship")
)
