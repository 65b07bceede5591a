// Package types defines the wire-level request, response, and error
// shapes shared by the API handlers and middleware.
package types
