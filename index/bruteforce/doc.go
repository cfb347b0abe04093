// Package bruteforce provides an exhaustive cosine index. Every query scores
// all entries, so range results are exact.
package bruteforce
