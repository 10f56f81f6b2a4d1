package nlp

import (
	"github.com/pkg/errors"

	"github.com/san-kum/dynopt/internal/dynamo"
	"github.com/san-kum/dynopt/internal/expr"
)

// Block is a named slice of a state or control vector.
type Block struct {
	Name string
	Size int
}

// Layout orders the blocks of a vector.
type Layout struct {
	blocks  []Block
	offsets map[string]int
	size    int
}

func NewLayout(blocks ...Block) (*Layout, error) {
	l := &Layout{offsets: make(map[string]int)}
	for _, b := range blocks {
		if err := l.Append(b); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Layout) Append(b Block) error {
	if _, dup := l.offsets[b.Name]; dup {
		return errors.Wrapf(dynamo.ErrInvalidParameter, "block %q declared twice", b.Name)
	}
	if b.Size < 0 {
		return errors.Wrapf(dynamo.ErrInvalidParameter, "block %q has negative size %d", b.Name, b.Size)
	}
	l.blocks = append(l.blocks, b)
	l.offsets[b.Name] = l.size
	l.size += b.Size
	return nil
}

func (l *Layout) Size() int { return l.size }

func (l *Layout) Blocks() []Block {
	return append([]Block(nil), l.blocks...)
}

func (l *Layout) Has(name string) bool {
	_, ok := l.offsets[name]
	return ok
}

// Offset is the position of element idx of block name.
func (l *Layout) Offset(name string, idx int) (int, error) {
	off, ok := l.offsets[name]
	if !ok {
		return 0, errors.Wrapf(dynamo.ErrInvalidParameter, "no block %q", name)
	}
	for _, b := range l.blocks {
		if b.Name == name && (idx < 0 || idx >= b.Size) {
			return 0, errors.Wrapf(dynamo.ErrIndexOutOfRange, "block %q has %d elements, got index %d", name, b.Size, idx)
		}
	}
	return off + idx, nil
}

// Split views v block by block.
func (l *Layout) Split(v expr.Vector) (Variables, error) {
	if len(v) != l.size {
		return Variables{}, errors.Wrapf(dynamo.ErrDimensionMismatch, "vector of size %d for layout of size %d", len(v), l.size)
	}
	return Variables{layout: l, v: v}, nil
}

// Variables is a named view of a state or control vector.
type Variables struct {
	layout *Layout
	v      expr.Vector
}

func (vs Variables) Has(name string) bool {
	return vs.layout != nil && vs.layout.Has(name)
}

// Get returns the sub-vector of block name.
func (vs Variables) Get(name string) (expr.Vector, error) {
	if !vs.Has(name) {
		return nil, errors.Wrapf(dynamo.ErrInvalidParameter, "no variable %q", name)
	}
	off := vs.layout.offsets[name]
	for _, b := range vs.layout.blocks {
		if b.Name == name {
			return vs.v[off : off+b.Size].Clone(), nil
		}
	}
	return nil, errors.Wrapf(dynamo.ErrInvalidParameter, "no variable %q", name)
}

func (vs Variables) Vector() expr.Vector { return vs.v }
