// Package gateway provides the public API for embedding the shim.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/tjfontaine/courtside/internal/runtime"
)

// Gateway is the assembled shim.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithFileConfig("config.yaml"),
//	    gateway.WithLogger(logger),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig = runtime.WithFileConfig
	WithConfig     = runtime.WithConfig

	// Dependencies
	WithUpstream        = runtime.WithUpstream
	WithNBAProvider     = runtime.WithNBAProvider
	WithInvocationStore = runtime.WithInvocationStore
	WithLogger          = runtime.WithLogger
)
