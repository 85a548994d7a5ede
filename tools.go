//go:build tools

// Development tools pinned in go.mod. The linter runs over every package,
// including the cmd/ hosts:
//
//	go run github.com/golangci/golangci-lint/cmd/golangci-lint run ./...
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
)
