// Package apitypes holds the wire models generated from api/openapi.yaml.
// Run `go generate ./internal/adapters/http` after editing the document.
package apitypes
