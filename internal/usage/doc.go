// ABOUTME: Package usage implements the fire-and-forget work queue that
// ABOUTME: carries AppendUsage and TouchEndpoint writes off the request path.
package usage
