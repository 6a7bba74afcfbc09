// Package idgen wraps the UUID generator so that tests can substitute a
// deterministic source. It lives under `internal` because callers should not
// rely on its exact behaviour – identifiers are opaque strings.
package idgen
