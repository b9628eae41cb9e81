// Package redis wraps go-redis with the service logger and configuration
// conventions. It backs the transcription cache.
//
// TypedStore stores JSON values under a key prefix:
//
//	store := redis.NewTypedStore[transcription.Response](client, "transcripts")
//	resp, err := store.Load(ctx, key) // nil, nil on a miss
package redis
