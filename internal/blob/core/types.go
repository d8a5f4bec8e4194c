// Package core defines the object store that mirrors benchmark results off
// the host. Result objects are written once and never rewritten, so Put is
// create-only across every driver.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver names a backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	// DriverMemory keeps objects in process; used by tests and dry runs.
	DriverMemory Driver = "memory"
)

// PutOptions carries the optional attributes of a new object.
type PutOptions struct {
	ContentType string
	// Metadata is stored alongside the object. S3 lowercases keys.
	Metadata map[string]string
}

// Info describes a stored object. List results from S3 omit ContentType and
// Metadata.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is implemented by every driver. Keys are slash separated.
type Store interface {
	// Put writes a new object and fails with ErrExists when key is taken.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get fails with ErrNotFound when key is absent.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) (bool, error)
	// List returns the objects under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

var (
	ErrExists   = errors.New("blob: key already exists")
	ErrNotFound = errors.New("blob: key not found")
)
