package linker

import (
	"debug/elf"
	"sync"

	"go.uber.org/zap"

	"github.com/elfkit/layout/pkg/utils"
)

// CreateSyntheticSections seeds the layout with the purely generated header
// sections. Must run before any fragment is placed so the headers claim the
// front of the first loadable segment. Raw-binary output carries no headers.
func CreateSyntheticSections(ctx *Context) {
	if ctx.Args.OFormatBinary {
		return
	}
	utils.Assert(len(ctx.OutputSections) == 0)

	ehdr := NewElfHeaderSection(ctx)
	phdr := NewProgramHeadersSection(ctx)
	ctx.OutputSections = append(ctx.OutputSections, ehdr, phdr)
	ctx.Out.ElfHeader.Set(ehdr)
	ctx.Out.ProgramHeaders.Set(phdr)
}

// RegisterStandardSections fills the well-known registry slots from the
// placed output sections, so later phases can look them up by slot instead
// of re-deriving them by name.
func RegisterStandardSections(ctx *Context) {
	for _, osec := range ctx.OutputSections {
		switch osec.GetName() {
		case ".bss":
			if reg, ok := AsRegular(osec); ok && !ctx.Out.Bss.Has() {
				ctx.Out.Bss.Set(reg)
			}
		case ".bss.rel.ro":
			if reg, ok := AsRegular(osec); ok && !ctx.Out.BssRelRo.Has() {
				ctx.Out.BssRelRo.Set(reg)
			}
		case ".debug_info":
			if !ctx.Out.DebugInfo.Has() {
				ctx.Out.DebugInfo.Set(osec)
			}
		case ".preinit_array":
			if !ctx.Out.PreinitArray.Has() {
				ctx.Out.PreinitArray.Set(osec)
			}
		case ".init_array":
			if !ctx.Out.InitArray.Has() {
				ctx.Out.InitArray.Set(osec)
			}
		case ".fini_array":
			if !ctx.Out.FiniArray.Has() {
				ctx.Out.FiniArray.Set(osec)
			}
		}
	}
}

// FinalizeSections fixes every section's size and ordering. Ordinary
// sections go first; the header tables go last because their sizes depend
// on the final section and segment counts.
func FinalizeSections(ctx *Context) {
	for _, osec := range ctx.OutputSections {
		if reg, ok := AsRegular(osec); ok {
			switch reg.Shdr.Type {
			case uint32(elf.SHT_INIT_ARRAY), uint32(elf.SHT_FINI_ARRAY):
				reg.SortInitFini()
			}
			switch reg.Name {
			case ".ctors", ".dtors":
				reg.SortCtorsDtors()
			}
		}
		if osec.Kind() != KindBase {
			osec.Finalize()
		}
	}

	shndx := int64(1)
	for _, osec := range ctx.OutputSections {
		if osec.Kind() != KindBase {
			osec.GetChunk().Shndx = shndx
			shndx++
		}
	}

	if !ctx.Args.OFormatBinary {
		shdrs := NewSectionHeadersSection(ctx)
		ctx.OutputSections = append(ctx.OutputSections, shdrs)
		ctx.Out.SectionHeaders.Set(shdrs)

		// Dependency order: segment count first, then the tables sized
		// from it.
		ctx.Out.ProgramHeaders.Get().Finalize()
		ctx.Out.SectionHeaders.Get().Finalize()
		ctx.Out.ElfHeader.Get().Finalize()
	}

	Logger().Debug("finalized sections",
		zap.Int("sections", len(ctx.OutputSections)))
}

// CopyBuf writes every section's fragments into the shared output buffer.
// Precondition: AssignFileOffsets and CheckRanges have run, and relocation
// resolution has already patched fragment contents.
func CopyBuf(ctx *Context) {
	for _, osec := range ctx.OutputSections {
		osec.WriteTo(ctx)
	}
}

// CopyBufParallel is CopyBuf with one writer per section. Safe because the
// offset-resolution barrier guarantees sections write disjoint ranges.
func CopyBufParallel(ctx *Context) {
	var wg sync.WaitGroup
	for _, osec := range ctx.OutputSections {
		wg.Add(1)
		go func(s Section) {
			defer wg.Done()
			s.WriteTo(ctx)
		}(osec)
	}
	wg.Wait()
}

// Layout runs the whole pipeline over sections that already have addresses
// and segment membership assigned: finalize, offset resolution, the range
// barrier, then the write phase.
func Layout(ctx *Context) error {
	filesize, err := AssignFileOffsets(ctx)
	if err != nil {
		return err
	}
	if !ctx.Args.OFormatBinary {
		BuildSegmentHeaders(ctx)
	}
	CheckRanges(ctx)
	ctx.Buf = make([]byte, filesize)
	CopyBuf(ctx)

	Logger().Debug("layout complete",
		zap.String("output", ctx.Args.Output),
		zap.Uint64("filesize", filesize))
	return nil
}
