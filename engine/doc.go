// Package engine provides helpers for working with the modernc.org/sqlite
// driver in this module: opening connections with the pragmas the duplicate
// store relies on and registering the SQL vector distance functions. It
// intentionally keeps a thin surface so other packages share one driver.
package engine
