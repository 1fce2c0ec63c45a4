//go:build !unix

package vectors

// fileLock is a no-op on platforms without flock; in-process refreshes are
// still serialized by Index.
type fileLock struct{}

func lockFile(string) (*fileLock, error) { return &fileLock{}, nil }

func (l *fileLock) unlock() error { return nil }
