// Package ratelimit provides the sliding-window admission control shared by
// all outbound platform API calls.
package ratelimit
