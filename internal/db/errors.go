package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrFieldNotFound = errors.New("db: hash field not found")
)

// Op constants map to Redis/Valkey command names for error context.
const (
	OpDel       = "DEL"
	OpExists    = "EXISTS"
	OpGet       = "GET"
	OpHGet      = "HGET"
	OpHGetAll   = "HGETALL"
	OpHSet      = "HSET"
	OpPublish   = "PUBLISH"
	OpScan      = "SCAN"
	OpSet       = "SET"
	OpSubscribe = "SUBSCRIBE"
	OpXAdd      = "XADD"
	OpXLen      = "XLEN"
	OpXRange    = "XRANGE"
	OpXRevRange = "XREVRANGE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
