// Package objectstore declares the blob-storage contract media flows use
// to persist generated images/audio, standing in for the out-of-scope
// external blob store named but not specified by spec.md §4.4.4.
package objectstore

import "context"

// Store persists opaque binary blobs and returns a stable id a media flow
// can attach to a Unit/Lesson row (art_image_id, podcast_audio_id).
type Store interface {
	// Put stores data and returns its object id.
	Put(ctx context.Context, contentType string, data []byte) (id string, err error)

	// Get returns a previously stored blob by id.
	Get(ctx context.Context, id string) (data []byte, contentType string, err error)
}
