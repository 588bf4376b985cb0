package linker

import (
	"github.com/elfkit/layout/pkg/utils"
)

// Slot is a write-once handle. Reading an empty slot or setting a populated
// one is a phase-ordering bug in the caller and fails loud.
type Slot[T any] struct {
	val T
	set bool
}

func (s *Slot[T]) Set(val T) {
	utils.Assert(!s.set)
	s.val = val
	s.set = true
}

func (s *Slot[T]) Get() T {
	utils.Assert(s.set)
	return s.val
}

func (s *Slot[T]) Has() bool {
	return s.set
}

// Out holds the sections the linker handles specially, so collaborators can
// look them up by slot instead of re-deriving them. Slots are populated once
// during setup, in dependency order: sections whose sizes other sections
// depend on (the header tables) are finalized after all ordinary sections.
// Ownership stays with ctx.OutputSections.
type Out struct {
	Bss            Slot[*OutputSection]
	BssRelRo       Slot[*OutputSection]
	TlsPhdr        Slot[*Phdr]
	DebugInfo      Slot[Section]
	ElfHeader      Slot[Section]
	ProgramHeaders Slot[Section]
	SectionHeaders Slot[Section]
	PreinitArray   Slot[Section]
	InitArray      Slot[Section]
	FiniArray      Slot[Section]
}

// GetHeaderSize is the number of bytes the file header and program-header
// table occupy on disk. Raw-binary output carries no headers at all.
func GetHeaderSize(ctx *Context) uint64 {
	if ctx.Args.OFormatBinary {
		return 0
	}
	return ctx.Out.ElfHeader.Get().GetChunk().Shdr.Size +
		ctx.Out.ProgramHeaders.Get().GetChunk().Shdr.Size
}
