// Package pagination assembles complete result sets from Brightpearl's
// fixed-size search pages.
//
// Search endpoints return positional rows plus metadata naming the
// columns and the paging state (resultsAvailable, firstResult,
// lastResult, morePagesAvailable). The walker advances offsets until the
// server reports exhaustion, zipping the column names onto each row so
// callers work with named records instead of positional slices.
//
// The walk is strictly sequential: each page's firstResult depends on
// the previous page's lastResult, and the engine serializes all calls
// per client instance anyway. Termination is deterministic because
// resultsAvailable is non-increasing across a session and lastResult
// strictly increases with each successful page.
package pagination
