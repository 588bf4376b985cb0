package linker

import (
	"debug/elf"

	"github.com/elfkit/layout/pkg/utils"
)

type SectionKind uint8

// The kind set is closed. Dispatch happens through the Section interface,
// but collaborators that need the concrete type must go through the
// checked casts below rather than a bare type assertion.
const (
	KindBase SectionKind = iota
	KindEHFrame
	KindMerge
	KindRegular
)

type Section interface {
	Kind() SectionKind
	GetName() string
	GetChunk() *Chunk
	AddFragment(frag *Fragment)
	Finalize()
	WriteTo(ctx *Context)
	ForEachFragment(fn func(frag *Fragment))
}

// Chunk is the common descriptor of one region of the output file. Purely
// generated sections (the ELF header, the header tables) are plain Chunks;
// content-bearing kinds embed it and override the fragment operations.
type Chunk struct {
	Name  string
	Shdr  Shdr
	Shndx int64

	// Delta between where the section is placed at load time and where it
	// runs. Zero for images whose load and run addresses coincide.
	LMAOffset uint64

	// If true, this section starts a new loadable segment and its file
	// offset must be congruent to its address modulo the page size.
	PageAlign bool

	// Index into ctx.OutputSections of the first section in the loadable
	// segment this section resides in, or -1 when the section is not part
	// of any segment. Within one segment, offset deltas equal address
	// deltas; see AssignFileOffsets.
	FirstInSeg int
}

func NewChunk() Chunk {
	return Chunk{
		Shdr:       Shdr{AddrAlign: 1},
		FirstInSeg: -1,
	}
}

func (c *Chunk) Kind() SectionKind {
	return KindBase
}

func (c *Chunk) GetName() string {
	return c.Name
}

func (c *Chunk) GetChunk() *Chunk {
	return c
}

// UpdateAlignment widens the section alignment; it never narrows.
func (c *Chunk) UpdateAlignment(align uint64) {
	utils.Assert(utils.IsPowerOfTwo(align))
	if align > c.Shdr.AddrAlign {
		c.Shdr.AddrAlign = align
	}
}

func (c *Chunk) GetLoadAddr() uint64 {
	return c.Shdr.Addr + c.LMAOffset
}

// GetPhdrFlags derives the loadable-segment permission bits from the
// section flags. Used by the program-header builder.
func (c *Chunk) GetPhdrFlags() uint32 {
	flags := uint32(elf.PF_R)
	if c.Shdr.Flags&uint64(elf.SHF_WRITE) != 0 {
		flags |= uint32(elf.PF_W)
	}
	if c.Shdr.Flags&uint64(elf.SHF_EXECINSTR) != 0 {
		flags |= uint32(elf.PF_X)
	}
	return flags
}

func (c *Chunk) AddFragment(frag *Fragment) {}

func (c *Chunk) Finalize() {}

func (c *Chunk) WriteTo(ctx *Context) {}

func (c *Chunk) ForEachFragment(fn func(frag *Fragment)) {}

func AsRegular(s Section) (*OutputSection, bool) {
	if s.Kind() != KindRegular {
		return nil, false
	}
	return s.(*OutputSection), true
}

func AsMerged(s Section) (*MergedSection, bool) {
	if s.Kind() != KindMerge {
		return nil, false
	}
	return s.(*MergedSection), true
}

func AsEhFrame(s Section) (*EhFrameSection, bool) {
	if s.Kind() != KindEHFrame {
		return nil, false
	}
	return s.(*EhFrameSection), true
}
