package linker

import (
	"sort"

	"github.com/elfkit/layout/pkg/utils"
)

// MergedSection deduplicates mergeable string/constant fragments by byte
// content. Identical pieces collapse onto one canonical fragment whose
// alignment is the widest requested.
type MergedSection struct {
	Chunk
	Idx uint32

	Map map[string]*Fragment

	// Canonical pieces in their finalized order, valid after Finalize.
	ordered []*Fragment
}

func NewMergedSection(name string, typ uint32, flags uint64, idx uint32) *MergedSection {
	m := &MergedSection{
		Chunk: NewChunk(),
		Map:   make(map[string]*Fragment),
	}
	m.Name = name
	m.Shdr.Type = typ
	m.Shdr.Flags = flags
	m.Idx = idx
	return m
}

func (m *MergedSection) Kind() SectionKind {
	return KindMerge
}

// Insert registers one piece of mergeable content and returns the canonical
// fragment it merged into.
func (m *MergedSection) Insert(key string, p2align uint8) *Fragment {
	if frag, ok := m.Map[key]; ok {
		if frag.P2Align < p2align {
			frag.P2Align = p2align
		}
		return frag
	}
	frag := NewFragment(m.Name, m.Shdr.Type, m.Shdr.Flags, p2align, []byte(key))
	frag.Parent = m
	m.Map[key] = frag
	return frag
}

func (m *MergedSection) AddFragment(frag *Fragment) {
	canonical := m.Insert(string(frag.Content), frag.P2Align)
	if canonical != frag {
		frag.IsAlive = false
		frag.Parent = m
	}
}

// Finalize orders the canonical pieces deterministically (alignment, then
// length, then content) and assigns their offsets.
func (m *MergedSection) Finalize() {
	fragments := make([]*Fragment, 0, len(m.Map))
	keys := make([]string, 0, len(m.Map))
	for key := range m.Map {
		keys = append(keys, key)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		x := m.Map[keys[i]]
		y := m.Map[keys[j]]
		if x.P2Align != y.P2Align {
			return x.P2Align < y.P2Align
		}
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})

	offset := uint64(0)
	p2align := uint64(0)
	for _, key := range keys {
		frag := m.Map[key]
		offset = utils.AlignTo(offset, frag.Alignment())
		frag.RelOffset = offset
		offset += frag.Size()
		if p2align < uint64(frag.P2Align) {
			p2align = uint64(frag.P2Align)
		}
		fragments = append(fragments, frag)
	}

	m.ordered = fragments
	m.Shdr.Size = utils.AlignTo(offset, 1<<p2align)
	m.UpdateAlignment(1 << p2align)
}

func (m *MergedSection) WriteTo(ctx *Context) {
	base := ctx.Buf[m.Shdr.Offset : m.Shdr.Offset+m.Shdr.Size]
	for _, frag := range m.ordered {
		frag.WriteTo(base[frag.RelOffset:])
	}
}

func (m *MergedSection) ForEachFragment(fn func(frag *Fragment)) {
	for _, frag := range m.ordered {
		fn(frag)
	}
}
