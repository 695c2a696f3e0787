// Package engine assembles a running savekit instance from configuration.
//
// Construction order:
//
//  1. Validate the configuration and build the logger.
//  2. Start the worker pool.
//  3. Open the SQLite namespace store backing the remote store.
//  4. Set up the anonymous session and sign in, resuming the configured
//     identity when there is one.
//  5. Create the remote store, then the local store with the remote store
//     as its encryption material source.
//
// Close reverses this: the pool is shut down with the configured grace
// period first, so in-flight saves reach the namespace store before it
// is closed.
package engine
