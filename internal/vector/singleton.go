package vector

import "sync"

var (
	sharedOnce     sync.Once
	sharedEmbedder Embedder
	sharedErr      error
)

// Shared returns the process-wide embedder, constructing and initializing it
// on first call. Every caller after the first receives the same instance (or
// the same construction error) regardless of the settings passed, so vectors
// produced during ingestion and querying always share one vector space.
func Shared(settings Settings) (Embedder, error) {
	sharedOnce.Do(func() {
		embedder, err := NewEmbedder(settings)
		if err != nil {
			sharedErr = err
			return
		}
		if err := embedder.Initialize(); err != nil {
			sharedErr = err
			return
		}
		sharedEmbedder = embedder
	})
	return sharedEmbedder, sharedErr
}
