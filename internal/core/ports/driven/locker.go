package driven

import "context"

// DocumentLocker serialises writers of the same document id.
// Writers of different documents never block each other.
type DocumentLocker interface {
	// Lock blocks until the document's lock is held or ctx is done.
	// The returned func releases it and is safe to call once.
	Lock(ctx context.Context, documentID string) (unlock func(), err error)
}
