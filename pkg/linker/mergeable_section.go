package linker

import "sort"

// MergeableSection mirrors one mergeable input section after upstream
// splitting: the split pieces in input order, their offsets within the
// original section, and the canonical fragments they merged into.
type MergeableSection struct {
	Parent      *MergedSection
	P2Align     uint8
	Strs        []string
	FragOffsets []uint64
	Fragments   []*Fragment
}

// RegisterFragments feeds every piece into the parent merged section and
// records the canonical fragments, in input order.
func (m *MergeableSection) RegisterFragments() {
	m.Fragments = make([]*Fragment, 0, len(m.Strs))
	for _, str := range m.Strs {
		m.Fragments = append(m.Fragments, m.Parent.Insert(str, m.P2Align))
	}
}

// GetFragment maps an offset within the original input section to the
// merged fragment containing it, plus the remainder inside that fragment.
// Used by symbol-address resolution.
func (m *MergeableSection) GetFragment(offset uint64) (*Fragment, uint64) {
	pos := sort.Search(len(m.FragOffsets), func(i int) bool {
		return offset < m.FragOffsets[i]
	})
	if pos == 0 {
		return nil, 0
	}
	idx := pos - 1
	return m.Fragments[idx], offset - m.FragOffsets[idx]
}
