// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pointer provides utilities for working with pointers in Go.

It mainly bridges optional values and nullable storage columns, where an
empty string in the domain is NULL in the database.

Key Functions:
  - Val: Safely dereferences a pointer, returning the zero value if nil.
  - NilIfZero: Returns nil for the zero value, a pointer otherwise.
*/
package pointer

// Val safely dereferences a pointer.
// If the pointer is nil, it returns the zero value of the underlying type.
func Val[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// NilIfZero returns nil when v is the zero value of its type.
// It maps optional fields onto nullable columns (e.g. a missing google id to NULL).
func NilIfZero[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
