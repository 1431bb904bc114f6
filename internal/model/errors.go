package model

import "errors"

// Sentinel errors for the checkpoint loader.
var (
	// ErrCheckpointIO wraps a filesystem-level failure opening or reading
	// the checkpoint file.
	ErrCheckpointIO = errors.New("model: checkpoint io error")
	// ErrCheckpointCorrupt covers an unexpected EOF, an impossible Config,
	// or trailing bytes that are not the (optional) classifier weights.
	ErrCheckpointCorrupt = errors.New("model: checkpoint corrupt")
)
