// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the entity already exists, such as a report saved
// twice under the same run id.
var ErrConflict = errors.New("conflict: resource already exists")
