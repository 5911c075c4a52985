package collab

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/collabbridge/internal/rope"
)

// MemoryService is an in-memory Service used by tests and the development
// daemon. It applies operations positionally and honors MergeLatestWins with
// a per-document clock floor: operations older than the newest applied clock
// are dropped as already superseded.
type MemoryService struct {
	mu   sync.RWMutex
	docs map[string]*memoryDoc
}

type memoryDoc struct {
	content    rope.Rope
	clockFloor int64
}

// NewMemoryService creates an empty in-memory service.
func NewMemoryService() *MemoryService {
	return &MemoryService{docs: make(map[string]*memoryDoc)}
}

// SetDocument seeds or replaces a document's content.
func (s *MemoryService) SetDocument(uri, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = &memoryDoc{content: rope.FromString(content)}
}

// DocumentContent implements Service.
func (s *MemoryService) DocumentContent(_ context.Context, uri string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[uri]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	return doc.content.String(), nil
}

// ApplyTransform implements Service. Unknown documents are created empty so
// a first insert bootstraps the document.
func (s *MemoryService) ApplyTransform(_ context.Context, uri string, op Operation, policy MergePolicy, _ string) error {
	if err := op.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		doc = &memoryDoc{}
		s.docs[uri] = doc
	}

	if policy == MergeLatestWins && op.Clock > 0 && op.Clock < doc.clockFloor {
		return fmt.Errorf("%w: clock %d below floor %d", ErrStaleOperation, op.Clock, doc.clockFloor)
	}

	switch op.Kind {
	case OpInsert:
		pos := op.Position
		if pos > doc.content.Len() {
			pos = doc.content.Len()
		}
		doc.content = doc.content.Insert(pos, op.Content)
	case OpDelete:
		start := op.Position
		end := op.Position + op.Length
		doc.content = doc.content.Delete(start, end)
	}

	if op.Clock > doc.clockFloor {
		doc.clockFloor = op.Clock
	}
	return nil
}

// ClockFloor returns the newest applied clock for a document. Zero means no
// clocked operation has been applied.
func (s *MemoryService) ClockFloor(uri string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.docs[uri]; ok {
		return doc.clockFloor
	}
	return 0
}
