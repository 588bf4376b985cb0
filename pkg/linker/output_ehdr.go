package linker

import (
	"debug/elf"

	"github.com/elfkit/layout/pkg/utils"
)

// ElfHeaderSection is a purely generated section covering the file header.
// It never receives fragments; it exists so the header's bytes occupy a
// reserved range at the front of the first loadable segment.
type ElfHeaderSection struct {
	Chunk
	ctx *Context
}

func NewElfHeaderSection(ctx *Context) *ElfHeaderSection {
	o := &ElfHeaderSection{Chunk: NewChunk(), ctx: ctx}
	o.Name = "ehdr"
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.Size = uint64(EhdrSize)
	o.Shdr.AddrAlign = 8
	return o
}

func getEntryAddr(ctx *Context) uint64 {
	for _, osec := range ctx.OutputSections {
		if osec.GetName() == ".text" {
			return osec.GetChunk().Shdr.Addr
		}
	}
	return 0
}

func (o *ElfHeaderSection) WriteTo(ctx *Context) {
	ehdr := Ehdr{}
	WriteMagic(ehdr.Ident[:])
	ehdr.Ident[elf.EI_CLASS] = uint8(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = uint8(elf.ELFDATA2LSB)
	ehdr.Ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)
	ehdr.Type = uint16(elf.ET_EXEC)
	ehdr.Machine = ctx.Args.Machine
	ehdr.Version = uint32(elf.EV_CURRENT)
	ehdr.Entry = getEntryAddr(ctx)
	ehdr.EhSize = uint16(EhdrSize)

	phdrs := ctx.Out.ProgramHeaders.Get().GetChunk()
	ehdr.PhOff = phdrs.Shdr.Offset
	ehdr.PhEntSize = uint16(PhdrSize)
	ehdr.PhNum = uint16(phdrs.Shdr.Size / uint64(PhdrSize))

	if ctx.Out.SectionHeaders.Has() {
		shdrs := ctx.Out.SectionHeaders.Get().GetChunk()
		ehdr.ShOff = shdrs.Shdr.Offset
		ehdr.ShEntSize = uint16(ShdrSize)
		ehdr.ShNum = uint16(shdrs.Shdr.Size / uint64(ShdrSize))
	}

	utils.Write[Ehdr](ctx.Buf[o.Shdr.Offset:], ehdr)
}
