package core

// txKind tags an undo transaction. Only transactions of the same kind merge.
type txKind int

const (
	txTyping txKind = iota
	txPaste
	txDelete
	txEdit
	txHistory
)

func (k txKind) String() string {
	switch k {
	case txTyping:
		return "typing"
	case txPaste:
		return "paste"
	case txDelete:
		return "delete"
	case txHistory:
		return "history"
	default:
		return "edit"
	}
}

// mergeDirections says which neighbours a transaction may merge with.
type mergeDirections uint8

const (
	mergeForward mergeDirections = 1 << iota
	mergeBackward
	mergeNone mergeDirections = 0
	mergeBoth                 = mergeForward | mergeBackward
)

// editPrimitive replaces removed with inserted at pos in the input text.
type editPrimitive struct {
	pos      int
	removed  string
	inserted string
}

type transaction struct {
	kind        txKind
	dirs        mergeDirections
	prims       []editPrimitive
	caretBefore int
	caretAfter  int
}

// canMerge reports whether next may fold into prev.
func canMerge(prev, next *transaction) bool {
	if prev.dirs&mergeForward == 0 || next.dirs&mergeBackward == 0 {
		return false
	}
	return prev.kind == next.kind
}

// undoStack records input edits. It is reset whenever a new prompt opens.
type undoStack struct {
	done   []*transaction
	undone []*transaction
}

func (u *undoStack) push(tx *transaction) {
	if tx == nil || len(tx.prims) == 0 {
		return
	}
	u.undone = nil
	if n := len(u.done); n > 0 && canMerge(u.done[n-1], tx) {
		prev := u.done[n-1]
		prev.prims = append(prev.prims, tx.prims...)
		prev.caretAfter = tx.caretAfter
		return
	}
	u.done = append(u.done, tx)
}

func (u *undoStack) popUndo() (*transaction, bool) {
	n := len(u.done)
	if n == 0 {
		return nil, false
	}
	tx := u.done[n-1]
	u.done = u.done[:n-1]
	u.undone = append(u.undone, tx)
	return tx, true
}

func (u *undoStack) popRedo() (*transaction, bool) {
	n := len(u.undone)
	if n == 0 {
		return nil, false
	}
	tx := u.undone[n-1]
	u.undone = u.undone[:n-1]
	u.done = append(u.done, tx)
	return tx, true
}

func (u *undoStack) reset() {
	u.done = nil
	u.undone = nil
}

// applyPrimitive replaces the primitive's removed text with its inserted text.
func applyPrimitive(text string, p editPrimitive) string {
	return text[:p.pos] + p.inserted + text[p.pos+len(p.removed):]
}

// revertPrimitive undoes applyPrimitive.
func revertPrimitive(text string, p editPrimitive) string {
	return text[:p.pos] + p.removed + text[p.pos+len(p.inserted):]
}
