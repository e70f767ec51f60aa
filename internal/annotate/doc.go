// Package annotate draws step markers onto captured screenshots.
//
// The Backend is a lazily-created singleton worker: Ensure starts it once,
// Annotate sends one request at a time over a channel, and Shutdown tears
// it down. A request in flight when Shutdown lands fails with ErrShutdown;
// the caller keeps the raw screenshot instead.
package annotate
