package db

import "errors"

// Sentinel errors shared by store implementations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
	ErrInvalidIndex  = errors.New("db: invalid index definition")
	ErrInvalidQuery  = errors.New("db: invalid search query")
)

// Op names the store command that failed, as reported in Error.
const (
	OpGet         = "GET"
	OpSet         = "SET"
	OpJSONSet     = "JSON.SET"
	OpJSONGet     = "JSON.GET"
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
)

// Error is a command failure reported by the store server or client.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "db: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
