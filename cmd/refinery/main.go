// Refinery is the AI resume-bullet refinement service.
//
// It exposes an HTTP API that refines resume bullet points through an
// AI provider, guarded by a per-user sliding-window rate limit and a
// fingerprint cache so identical requests never pay for a second AI
// call.
//
// Usage:
//
//	# Start server with default configuration
//	refinery run
//
//	# Start with custom configuration file
//	refinery run --config /path/to/config.yaml
//
//	# Show version information
//	refinery version
package main

func main() {
	Execute()
}
