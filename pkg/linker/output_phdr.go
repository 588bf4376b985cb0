package linker

import (
	"debug/elf"

	"github.com/elfkit/layout/pkg/utils"
)

// ProgramHeadersSection reserves space for the program-header table. Its
// size is fixed during finalize from the segment count; the entries
// themselves are built by BuildSegmentHeaders once file offsets are final.
type ProgramHeadersSection struct {
	Chunk
	ctx   *Context
	Phdrs []Phdr
}

func NewProgramHeadersSection(ctx *Context) *ProgramHeadersSection {
	o := &ProgramHeadersSection{Chunk: NewChunk(), ctx: ctx}
	o.Name = "phdr"
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.AddrAlign = 8
	return o
}

func (o *ProgramHeadersSection) Finalize() {
	o.Shdr.Size = uint64(countSegments(o.ctx)) * uint64(PhdrSize)
}

func (o *ProgramHeadersSection) WriteTo(ctx *Context) {
	utils.Assert(uint64(len(o.Phdrs))*uint64(PhdrSize) == o.Shdr.Size)
	base := ctx.Buf[o.Shdr.Offset:]
	for _, phdr := range o.Phdrs {
		utils.Write[Phdr](base, phdr)
		base = base[PhdrSize:]
	}
}

func isSegmentAnchor(idx int, chunk *Chunk) bool {
	if !isAlloc(&chunk.Shdr) {
		return false
	}
	return chunk.PageAlign || chunk.FirstInSeg == idx
}

func countSegments(ctx *Context) int {
	n := 1 // PT_PHDR
	hasTLS := false
	for i, osec := range ctx.OutputSections {
		chunk := osec.GetChunk()
		if isSegmentAnchor(i, chunk) {
			n++
		}
		if isAlloc(&chunk.Shdr) && isTLS(&chunk.Shdr) {
			hasTLS = true
		}
	}
	if hasTLS {
		n++ // PT_TLS
	}
	return n
}

// BuildSegmentHeaders assembles the program-header entries from the
// finalized section descriptors. Must run after AssignFileOffsets and
// before the write phase.
func BuildSegmentHeaders(ctx *Context) {
	osec := ctx.Out.ProgramHeaders.Get()
	o, ok := osec.(*ProgramHeadersSection)
	utils.Assert(ok)
	o.createPhdrs(ctx)
}

func (o *ProgramHeadersSection) createPhdrs(ctx *Context) {
	o.Phdrs = make([]Phdr, 0, countSegments(ctx))

	define := func(typ, flags uint32, minAlign uint64, chunk *Chunk) *Phdr {
		phdr := Phdr{
			Type:   typ,
			Flags:  flags,
			Align:  max(minAlign, chunk.Shdr.AddrAlign),
			Offset: chunk.Shdr.Offset,
			VAddr:  chunk.Shdr.Addr,
			PAddr:  chunk.GetLoadAddr(),
		}
		if !isNobits(&chunk.Shdr) {
			phdr.FileSize = chunk.Shdr.Size
		}
		phdr.MemSize = chunk.Shdr.Size
		o.Phdrs = append(o.Phdrs, phdr)
		return &o.Phdrs[len(o.Phdrs)-1]
	}

	push := func(phdr *Phdr, chunk *Chunk) {
		phdr.Align = max(phdr.Align, chunk.Shdr.AddrAlign)
		if !isNobits(&chunk.Shdr) {
			phdr.FileSize = chunk.Shdr.Addr + chunk.Shdr.Size - phdr.VAddr
		}
		phdr.MemSize = chunk.Shdr.Addr + chunk.Shdr.Size - phdr.VAddr
	}

	// The table covering itself.
	define(uint32(elf.PT_PHDR), uint32(elf.PF_R), 8, o.GetChunk())

	// One PT_LOAD per segment anchor, spanning every section that names
	// this anchor as its FirstInSeg.
	for i, anchor := range ctx.OutputSections {
		chunk := anchor.GetChunk()
		if !isSegmentAnchor(i, chunk) {
			continue
		}
		phdr := define(uint32(elf.PT_LOAD), chunk.GetPhdrFlags(), PageSize, chunk)
		for _, osec := range ctx.OutputSections[i+1:] {
			member := osec.GetChunk()
			if member.FirstInSeg != i || isTBSS(&member.Shdr) {
				continue
			}
			push(phdr, member)
		}
	}

	// PT_TLS spans the consecutive run of TLS sections.
	for i := 0; i < len(ctx.OutputSections); i++ {
		chunk := ctx.OutputSections[i].GetChunk()
		if !isAlloc(&chunk.Shdr) || !isTLS(&chunk.Shdr) {
			continue
		}
		phdr := define(uint32(elf.PT_TLS), chunk.GetPhdrFlags(), 1, chunk)
		i++
		for i < len(ctx.OutputSections) {
			chunk = ctx.OutputSections[i].GetChunk()
			if !isAlloc(&chunk.Shdr) || !isTLS(&chunk.Shdr) {
				break
			}
			push(phdr, chunk)
			i++
		}
		if !ctx.Out.TlsPhdr.Has() {
			ctx.Out.TlsPhdr.Set(phdr)
		}
		break
	}
}
