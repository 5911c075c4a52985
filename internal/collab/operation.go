package collab

import (
	"fmt"

	"github.com/google/uuid"
)

// OpKind is the kind of a primitive operation.
type OpKind int

// Primitive operation kinds.
const (
	OpInsert OpKind = iota
	OpDelete
)

// String returns the kind name.
func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Operation is a primitive edit against a document. Positions and lengths
// are byte offsets into the document content at the time the operation was
// produced.
type Operation struct {
	Kind     OpKind
	Position int
	Content  string // inserted text, empty for deletes
	Length   int    // deleted byte count, zero for inserts
	OpID     string
	Clock    int64
	UserID   string
}

// NewInsert creates an insert operation with a fresh operation ID.
func NewInsert(position int, content string, clock int64, userID string) Operation {
	return Operation{
		Kind:     OpInsert,
		Position: position,
		Content:  content,
		OpID:     uuid.New().String(),
		Clock:    clock,
		UserID:   userID,
	}
}

// NewDelete creates a delete operation with a fresh operation ID.
func NewDelete(position, length int, clock int64, userID string) Operation {
	return Operation{
		Kind:     OpDelete,
		Position: position,
		Length:   length,
		OpID:     uuid.New().String(),
		Clock:    clock,
		UserID:   userID,
	}
}

// Validate checks the operation for internal consistency.
func (op Operation) Validate() error {
	if op.Position < 0 {
		return fmt.Errorf("%w: negative position %d", ErrInvalidOperation, op.Position)
	}
	switch op.Kind {
	case OpInsert:
		if op.Content == "" {
			return fmt.Errorf("%w: insert without content", ErrInvalidOperation)
		}
	case OpDelete:
		if op.Length <= 0 {
			return fmt.Errorf("%w: delete with length %d", ErrInvalidOperation, op.Length)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidOperation, int(op.Kind))
	}
	return nil
}

// EditorOpKind is the kind of an operation in the editor-facing model.
type EditorOpKind int

// Editor operation kinds.
const (
	EditInsert EditorOpKind = iota
	EditDelete
	EditUpdate
)

// String returns the kind name.
func (k EditorOpKind) String() string {
	switch k {
	case EditInsert:
		return "insert"
	case EditDelete:
		return "delete"
	case EditUpdate:
		return "update"
	default:
		return fmt.Sprintf("EditorOpKind(%d)", int(k))
	}
}

// EditorOperation is the operation shape the collaboration layer exposes to
// editors. Update replaces Length bytes at Position with NewContent.
type EditorOperation struct {
	Kind       EditorOpKind
	Position   int
	Content    string // insert payload
	NewContent string // update payload
	Length     int    // delete/update span
	OpID       string
	Clock      int64
	UserID     string
}

// ToOperations converts an editor operation to the bridge's primitive pair.
// Update decomposes into a delete followed by an insert sharing the source
// operation's clock.
func (e EditorOperation) ToOperations() []Operation {
	switch e.Kind {
	case EditInsert:
		return []Operation{{
			Kind:     OpInsert,
			Position: e.Position,
			Content:  e.Content,
			OpID:     e.OpID,
			Clock:    e.Clock,
			UserID:   e.UserID,
		}}
	case EditDelete:
		return []Operation{{
			Kind:     OpDelete,
			Position: e.Position,
			Length:   e.Length,
			OpID:     e.OpID,
			Clock:    e.Clock,
			UserID:   e.UserID,
		}}
	case EditUpdate:
		del := Operation{
			Kind:     OpDelete,
			Position: e.Position,
			Length:   e.Length,
			OpID:     e.OpID + ":del",
			Clock:    e.Clock,
			UserID:   e.UserID,
		}
		ins := Operation{
			Kind:     OpInsert,
			Position: e.Position,
			Content:  e.NewContent,
			OpID:     e.OpID + ":ins",
			Clock:    e.Clock,
			UserID:   e.UserID,
		}
		return []Operation{del, ins}
	default:
		return nil
	}
}

// FromOperation lifts a primitive operation into the editor model.
func FromOperation(op Operation) EditorOperation {
	kind := EditInsert
	if op.Kind == OpDelete {
		kind = EditDelete
	}
	return EditorOperation{
		Kind:     kind,
		Position: op.Position,
		Content:  op.Content,
		Length:   op.Length,
		OpID:     op.OpID,
		Clock:    op.Clock,
		UserID:   op.UserID,
	}
}
