// Package vfskv implements the key-value engine of §4.G: inode
// allocation, directory listings, path resolution, and the transactional
// rename/unlink/mkdir operations that turn a raw key-value Store into a
// full POSIX filesystem.
//
// The source spec distinguishes a "sync" and an "async" key-value engine
// because its host language is single-threaded and cooperative: an async
// store suspends at await points a sync one never hits. Go has no
// equivalent implicit suspension, so this package models both with one
// Engine type (§9's "dynamic dispatch" note: "model as a tagged variant
// ... prefer the variant if the set is closed at build time"); what
// varies between the two spec engines — the path-resolution LRU cache —
// is an optional field on Engine instead of a second implementation.
package vfskv

import "errors"

// TxMode selects a read-only or read-write transaction.
type TxMode int

const (
	ReadOnly TxMode = iota
	ReadWrite
)

// ErrReadOnlyTx is returned by Put/Del on a transaction opened ReadOnly.
var ErrReadOnlyTx = errors.New("vfskv: write attempted on a read-only transaction")

// Transaction is a read-or-read-write scope over a Store.
type Transaction interface {
	Get(key string) ([]byte, error)
	// Put stores value at key. If overwrite is false and key already
	// exists, it returns (false, nil) rather than overwriting.
	Put(key string, value []byte, overwrite bool) (bool, error)
	Del(key string) error
	Commit() error
	Abort() error
}

// Store is a named key-value backing store capable of opening
// transactions over itself.
type Store interface {
	Name() string
	Clear() error
	BeginTransaction(mode TxMode) (Transaction, error)
}

// ErrNotFound is returned by Get when key is absent.
var ErrNotFound = errors.New("vfskv: key not found")
