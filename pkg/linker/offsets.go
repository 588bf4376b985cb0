package linker

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/elfkit/layout/pkg/utils"
)

// AssignFileOffsets derives every section's file offset from its already
// assigned virtual address, one pass in layout order. Within one loadable
// segment the offset delta between two sections equals their address delta:
//
//	off = off_first + addr - addr_first
//
// The first section of a segment is instead placed so that its offset is
// congruent to its address modulo the page size. Addresses are never
// mutated. Returns the total file extent.
func AssignFileOffsets(ctx *Context) (uint64, error) {
	fileoff := uint64(0)
	for i, osec := range ctx.OutputSections {
		chunk := osec.GetChunk()
		shdr := &chunk.Shdr

		switch {
		case !isAlloc(shdr):
			fileoff = utils.AlignTo(fileoff, shdr.AddrAlign)
			shdr.Offset = fileoff
			if !isNobits(shdr) {
				fileoff += shdr.Size
			}

		case isNobits(shdr):
			// Occupies memory but no file space.
			shdr.Offset = fileoff

		case chunk.PageAlign || chunk.FirstInSeg == i:
			if shdr.AddrAlign > PageSize {
				return 0, overAlignedError(osec)
			}
			fileoff = utils.AlignTo(fileoff, shdr.AddrAlign)
			fileoff += (shdr.Addr%PageSize + PageSize - fileoff%PageSize) % PageSize
			shdr.Offset = fileoff
			fileoff += shdr.Size

		case chunk.FirstInSeg >= 0:
			first := ctx.OutputSections[chunk.FirstInSeg].GetChunk()
			if shdr.Addr < first.Shdr.Addr {
				return 0, fmt.Errorf(
					"layout: section %s at address 0x%x precedes its segment anchor %s at 0x%x",
					chunk.Name, shdr.Addr, first.Name, first.Shdr.Addr)
			}
			off := first.Shdr.Offset + (shdr.Addr - first.Shdr.Addr)
			if off < fileoff {
				return 0, fmt.Errorf(
					"layout: section %s would overlap the preceding file contents (offset 0x%x, file end 0x%x)",
					chunk.Name, off, fileoff)
			}
			shdr.Offset = off
			fileoff = off + shdr.Size

		default:
			fileoff = utils.AlignTo(fileoff, shdr.AddrAlign)
			shdr.Offset = fileoff
			fileoff += shdr.Size
		}
	}

	Logger().Debug("assigned file offsets",
		zap.Int("sections", len(ctx.OutputSections)),
		zap.Uint64("filesize", fileoff))
	return fileoff, nil
}

// overAlignedError names the fragment that forced the impossible alignment.
func overAlignedError(osec Section) error {
	chunk := osec.GetChunk()
	culprit := ""
	osec.ForEachFragment(func(frag *Fragment) {
		if culprit == "" && frag.Alignment() == chunk.Shdr.AddrAlign {
			culprit = fmt.Sprintf("%s:(%s)", frag.Origin, frag.Name)
		}
	})
	if culprit == "" {
		return fmt.Errorf(
			"layout: section %s: alignment 0x%x exceeds the page size",
			chunk.Name, chunk.Shdr.AddrAlign)
	}
	return fmt.Errorf(
		"layout: section %s: fragment %s alignment 0x%x exceeds the page size",
		chunk.Name, culprit, chunk.Shdr.AddrAlign)
}

// CheckRanges asserts that no two sections claim overlapping file ranges.
// An overlap is an internal-consistency fault, not a recoverable error: it
// would produce a corrupt binary, so it fails loud before the write phase.
func CheckRanges(ctx *Context) {
	type span struct {
		name       string
		start, end uint64
	}
	spans := make([]span, 0, len(ctx.OutputSections))
	for _, osec := range ctx.OutputSections {
		shdr := &osec.GetChunk().Shdr
		if isNobits(shdr) || shdr.Size == 0 {
			continue
		}
		spans = append(spans, span{
			name:  osec.GetName(),
			start: shdr.Offset,
			end:   shdr.Offset + shdr.Size,
		})
	}
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].start < spans[j].start
	})
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			utils.Fatal(fmt.Sprintf(
				"overlapping file ranges: %s and %s",
				spans[i-1].name, spans[i].name))
		}
	}
}
