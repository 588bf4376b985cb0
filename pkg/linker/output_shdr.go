package linker

import (
	"github.com/elfkit/layout/pkg/utils"
)

// SectionHeadersSection reserves space for the on-disk section-header table.
// Entry zero is the null header; every section with an assigned Shndx gets
// its descriptor written at that index.
type SectionHeadersSection struct {
	Chunk
	ctx *Context
}

func NewSectionHeadersSection(ctx *Context) *SectionHeadersSection {
	o := &SectionHeadersSection{Chunk: NewChunk(), ctx: ctx}
	o.Name = "shdr"
	o.Shdr.AddrAlign = 8
	return o
}

func (o *SectionHeadersSection) Finalize() {
	n := int64(0)
	for _, osec := range o.ctx.OutputSections {
		if shndx := osec.GetChunk().Shndx; shndx > n {
			n = shndx
		}
	}
	o.Shdr.Size = uint64(n+1) * uint64(ShdrSize)
}

func (o *SectionHeadersSection) WriteTo(ctx *Context) {
	base := ctx.Buf[o.Shdr.Offset:]
	utils.Write[Shdr](base, Shdr{})

	for _, osec := range ctx.OutputSections {
		chunk := osec.GetChunk()
		if chunk.Shndx > 0 {
			utils.Write[Shdr](base[chunk.Shndx*int64(ShdrSize):], chunk.Shdr)
		}
	}
}
