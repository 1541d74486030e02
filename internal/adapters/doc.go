// ABOUTME: Package adapters defines the shared Adapter capability set and
// ABOUTME: the service-kind registry built once at startup.
package adapters
