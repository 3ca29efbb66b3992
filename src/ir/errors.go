package ir

import "errors"

// -------------------
// ----- globals -----
// -------------------

// ErrMalformedType flags an unsupported width or a dangling type index.
var ErrMalformedType = errors.New("malformed type")

// ErrMalformedIR flags an undefined variable, a missing block, a terminator
// to an unknown node or a structure/index mismatch.
var ErrMalformedIR = errors.New("malformed IR")

// ErrInvariant flags an internal invariant violation: lookups that must hit
// after seeding, or a φ plan naming a variable that is never defined.
var ErrInvariant = errors.New("invariant violation")
