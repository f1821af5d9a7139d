// Package shared provides common utilities and test helpers used across the
// FundLens codebase. It serves as a central location for shared functionality
// that doesn't belong to any specific domain or architectural layer.
//
// The testutil subpackage provides a buffered slog handler for capturing and
// asserting on log output in tests.
//
// This package should only contain test utilities used by multiple packages
// and generic helpers with no domain-specific logic; it must never grow
// business logic or circular dependencies with other internal packages.
package shared
