package linker

import (
	"math"

	"github.com/elfkit/layout/pkg/utils"
)

// Fragment is one already-resolved piece of input content. Size, alignment
// and section-header attributes are known; relocations have already been
// applied to Content by the time WriteTo runs.
type Fragment struct {
	Name     string // output-section name hint
	Origin   string // file the fragment came from, for diagnostics and ordering
	Content  []byte
	NumBytes uint64
	Typ      uint32
	Flags    uint64
	P2Align  uint8

	// Offset relative to the owning output section, assigned by Finalize.
	RelOffset uint64

	Parent  Section
	IsAlive bool
}

func NewFragment(name string, typ uint32, flags uint64, p2align uint8, content []byte) *Fragment {
	return &Fragment{
		Name:      name,
		Content:   content,
		NumBytes:  uint64(len(content)),
		Typ:       typ,
		Flags:     flags,
		P2Align:   p2align,
		RelOffset: math.MaxUint64,
		IsAlive:   true,
	}
}

// NewZeroFragment makes a fragment that occupies memory but carries no file
// content (SHT_NOBITS input).
func NewZeroFragment(name string, typ uint32, flags uint64, p2align uint8, size uint64) *Fragment {
	frag := NewFragment(name, typ, flags, p2align, nil)
	frag.NumBytes = size
	return frag
}

func (f *Fragment) Size() uint64 {
	return f.NumBytes
}

func (f *Fragment) Alignment() uint64 {
	return 1 << f.P2Align
}

func (f *Fragment) GetAddr() uint64 {
	utils.Assert(f.Parent != nil)
	utils.Assert(f.RelOffset != math.MaxUint64)
	return f.Parent.GetChunk().Shdr.Addr + f.RelOffset
}

func (f *Fragment) WriteTo(buf []byte) {
	copy(buf, f.Content)
}
