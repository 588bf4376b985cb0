package linker

import (
	"encoding/binary"

	"github.com/elfkit/layout/pkg/utils"
)

// EhFrameSection aggregates call-frame information records. Duplicate CIEs
// are collapsed by byte content; FDEs keep insertion order after the CIEs.
// The section ends with a four-byte zero terminator.
type EhFrameSection struct {
	Chunk
	Idx uint32

	cies   []*Fragment
	cieMap map[string]*Fragment
	fdes   []*Fragment

	// Deduplicated CIEs waiting to inherit their canonical record's offset.
	dupes []dupCie
}

type dupCie struct {
	dead      *Fragment
	canonical *Fragment
}

func NewEhFrameSection(name string, typ uint32, flags uint64, idx uint32) *EhFrameSection {
	e := &EhFrameSection{
		Chunk:  NewChunk(),
		cieMap: make(map[string]*Fragment),
	}
	e.Name = name
	e.Shdr.Type = typ
	e.Shdr.Flags = flags
	e.Shdr.AddrAlign = 8
	e.Idx = idx
	return e
}

func (e *EhFrameSection) Kind() SectionKind {
	return KindEHFrame
}

// A record whose ID word (bytes 4..8) is zero is a CIE; anything else
// is an FDE referring back to its CIE.
func isCie(content []byte) bool {
	if len(content) < 8 {
		return false
	}
	return binary.LittleEndian.Uint32(content[4:8]) == 0
}

func (e *EhFrameSection) AddFragment(frag *Fragment) {
	frag.Parent = e
	e.UpdateAlignment(frag.Alignment())

	if isCie(frag.Content) {
		key := string(frag.Content)
		if canonical, ok := e.cieMap[key]; ok {
			frag.IsAlive = false
			e.dupes = append(e.dupes, dupCie{dead: frag, canonical: canonical})
			return
		}
		e.cieMap[key] = frag
		e.cies = append(e.cies, frag)
		return
	}
	e.fdes = append(e.fdes, frag)
}

func (e *EhFrameSection) Finalize() {
	off := uint64(0)
	assign := func(frags []*Fragment) {
		for _, frag := range frags {
			off = utils.AlignTo(off, 4)
			frag.RelOffset = off
			off += frag.Size()
		}
	}
	assign(e.cies)
	assign(e.fdes)

	// Zero terminator record.
	off += 4
	e.Shdr.Size = utils.AlignTo(off, e.Shdr.AddrAlign)

	// Deduplicated CIEs resolve to their canonical record's position.
	for _, dup := range e.dupes {
		dup.dead.RelOffset = dup.canonical.RelOffset
	}
}

func (e *EhFrameSection) WriteTo(ctx *Context) {
	base := ctx.Buf[e.Shdr.Offset : e.Shdr.Offset+e.Shdr.Size]
	for _, frag := range e.cies {
		frag.WriteTo(base[frag.RelOffset:])
	}
	for _, frag := range e.fdes {
		frag.WriteTo(base[frag.RelOffset:])
	}
	// The terminator and padding stay zero.
}

func (e *EhFrameSection) ForEachFragment(fn func(frag *Fragment)) {
	for _, frag := range e.cies {
		fn(frag)
	}
	for _, frag := range e.fdes {
		fn(frag)
	}
}
