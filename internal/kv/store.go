package kv

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Persisted keys.
const (
	KeySession        = "session"
	KeyCachedSnapshot = "cached_snapshot"
	KeyDeviceID       = "device_id"
	votePrefix        = "vote_"
)

// VoteKey is the key holding this device's vote for a venue.
func VoteKey(venueID string) string {
	return votePrefix + venueID
}

// Store is the device-local key-value substrate. Every implementation must
// make a completed Set visible to the next Get.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
