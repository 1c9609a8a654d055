package utils

// DynBuffer is a growable buffer whose storage survives Reset, so repeated
// exchanges reuse the same backing array.
type DynBuffer[T any] struct {
	cells []T
}

func NewDynBuffer[T any](capacity int) *DynBuffer[T] {
	return &DynBuffer[T]{cells: make([]T, 0, capacity)}
}

func (b *DynBuffer[T]) Add(cell T) { b.cells = append(b.cells, cell) }
func (b *DynBuffer[T]) Cells() []T { return b.cells }
func (b *DynBuffer[T]) Len() int   { return len(b.cells) }
func (b *DynBuffer[T]) Reset()     { b.cells = b.cells[:0] }
