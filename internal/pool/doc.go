// Package pool holds the live set of backends behind the proxy and supports
// runtime membership changes from the admin API. All accessors return
// snapshots so selection never races with membership updates.
package pool
