//go:build tools
// +build tools

// Package tools declares tool dependencies for this module,
// so that mockgen invoked via `go generate` is tracked in go.mod.
package chat_relay

import (
	_ "go.uber.org/mock/mockgen"
)
