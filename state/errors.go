package state

import "errors"

var (
	ErrInvalidNode      = errors.New("topology: node id out of range")
	ErrInvalidCost      = errors.New("topology: cost must be an integer in [0, 2^30]")
	ErrNotSymmetric     = errors.New("topology: cost matrix is not symmetric")
	ErrSelfCost         = errors.New("topology: self cost must be zero")
	ErrMatrixShape      = errors.New("topology: cost matrix is not square")
	ErrTooManyNodes     = errors.New("topology: too many nodes")
	ErrEmptyTopology    = errors.New("topology: no edges defined")

	ErrInvalidCfg = errors.New("config: invalid options")

	ErrNotStarted     = errors.New("controller: simulation not started")
	ErrAlreadyStarted = errors.New("controller: simulation already started")
	ErrStopped        = errors.New("controller: simulation stopped")
	ErrIncompleteDir  = errors.New("controller: node directory is incomplete")
)
