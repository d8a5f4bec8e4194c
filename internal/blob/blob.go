// Package blob is the facade the result mirror writes through. It is the only
// package that constructs the concrete drivers under internal/infra/blob.
package blob

import (
	"context"
	"fmt"

	"snpbench/internal/blob/core"
	"snpbench/internal/infra/blob/fs"
	"snpbench/internal/infra/blob/memory"
	infraS3 "snpbench/internal/infra/blob/s3"
)

type (
	Driver     = core.Driver
	PutOptions = core.PutOptions
	Info       = core.Info
	Store      = core.Store
	// S3Config carries the bucket, endpoint and credentials for DriverS3.
	S3Config = infraS3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrExists   = core.ErrExists
	ErrNotFound = core.ErrNotFound
)

// Config selects and parameterizes a driver.
type Config struct {
	Driver Driver
	Root   string // DriverFilesystem only
	S3     S3Config
}

// Open constructs the configured driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem:
		return fs.New(cfg.Root)
	case DriverS3:
		return infraS3.New(ctx, cfg.S3)
	case DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
}

// NewMemory returns an empty in-process store.
func NewMemory() Store { return memory.New() }

// NewMockS3ForTests returns an S3 store wired to an in-process fake endpoint.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
