// Package ratelimit paces outbound requests with golang.org/x/time/rate.
//
// The source API throttles clients that page through it too quickly, so the
// fetcher waits on an interval limiter before every page request. The first
// Wait returns immediately; each later Wait blocks until one interval has
// passed since the previous token was taken.
package ratelimit
