// Copyright (c) 2019 The Quarry developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package smt

import "github.com/pkg/errors"

var (
	// ErrIllegalKey is returned for keys that are not exactly KeySize bytes.
	ErrIllegalKey = errors.New("illegal key")

	// ErrKeyNotFound is returned by Delete for a key that is not in the tree.
	ErrKeyNotFound = errors.New("key not found")

	// The following signal structural corruption. They indicate a bug in
	// tree maintenance and must propagate as fatal, never be swallowed.

	// ErrInvalidChildKey is returned when a stored key contradicts the path
	// leading to it.
	ErrInvalidChildKey = errors.New("invalid child key")

	// ErrCannotMutateBranchNode is returned when a value write lands on a
	// branch node.
	ErrCannotMutateBranchNode = errors.New("cannot mutate branch node")

	// ErrUnexpectedNodeType is returned on an unknown node kind.
	ErrUnexpectedNodeType = errors.New("unexpected node type")
)
