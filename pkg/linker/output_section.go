package linker

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/elfkit/layout/pkg/utils"
)

// OutputSection aggregates plain content-bearing fragments. It owns the
// ordering; the fragments themselves are owned by the input side.
type OutputSection struct {
	Chunk
	Fragments []*Fragment
	Idx       uint32 // the index in ctx.OutputSections
}

func NewOutputSection(name string, typ uint32, flags uint64, idx uint32) *OutputSection {
	o := &OutputSection{Chunk: NewChunk()}
	o.Name = name
	o.Shdr.Type = typ
	o.Shdr.Flags = flags
	o.Idx = idx
	return o
}

func (o *OutputSection) Kind() SectionKind {
	return KindRegular
}

func (o *OutputSection) AddFragment(frag *Fragment) {
	frag.Parent = o
	o.Fragments = append(o.Fragments, frag)
	o.UpdateAlignment(frag.Alignment())
}

// Finalize assigns every fragment its offset relative to the section start
// and computes the section size. Recomputing with an unchanged sequence
// yields identical results.
func (o *OutputSection) Finalize() {
	off := uint64(0)
	for _, frag := range o.Fragments {
		utils.Assert(utils.IsPowerOfTwo(frag.Alignment()))
		off = utils.AlignTo(off, frag.Alignment())
		frag.RelOffset = off
		off += frag.Size()
	}
	o.Shdr.Size = utils.AlignTo(off, o.Shdr.AddrAlign)
}

func (o *OutputSection) WriteTo(ctx *Context) {
	if isNobits(&o.Shdr) {
		return
	}

	// Alignment gaps between fragments stay zero; the buffer is pre-zeroed.
	base := ctx.Buf[o.Shdr.Offset : o.Shdr.Offset+o.Shdr.Size]
	for _, frag := range o.Fragments {
		frag.WriteTo(base[frag.RelOffset:])
	}
}

func (o *OutputSection) ForEachFragment(fn func(frag *Fragment)) {
	for _, frag := range o.Fragments {
		fn(frag)
	}
}

// Sort reorders the fragments by ascending order value. The sort is stable,
// so equal-order fragments keep their insertion order.
func (o *OutputSection) Sort(order func(frag *Fragment) int) {
	sort.SliceStable(o.Fragments, func(i, j int) bool {
		return order(o.Fragments[i]) < order(o.Fragments[j])
	})
}

// Numbered entries run in ascending suffix order; entries without a numeric
// suffix run after all numbered ones.
const noPriority = 1 << 16

// namePriority parses the numeric suffix of names like ".init_array.00010".
func namePriority(name string) int {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return noPriority
	}
	prio, err := strconv.Atoi(name[idx+1:])
	if err != nil || prio < 0 {
		return noPriority
	}
	return prio
}

func (o *OutputSection) SortInitFini() {
	o.Sort(func(frag *Fragment) int {
		return namePriority(frag.Name)
	})
}

const ctorSentinel = 65535

func isCrtbegin(origin string) bool {
	return strings.Contains(origin, "crtbegin")
}

func isCrtend(origin string) bool {
	return strings.Contains(origin, "crtend")
}

// SortCtorsDtors orders constructor/destructor tables: the crtbegin
// fragment is pinned first and crtend last; numbered entries ascend;
// unnumbered entries follow the numbered ones but precede the terminator
// entry carrying the sentinel priority.
func (o *OutputSection) SortCtorsDtors() {
	o.Sort(func(frag *Fragment) int {
		switch {
		case isCrtbegin(frag.Origin):
			return math.MinInt32
		case isCrtend(frag.Origin):
			return math.MaxInt32
		}
		prio := namePriority(frag.Name)
		switch {
		case prio == noPriority:
			return ctorSentinel
		case prio >= ctorSentinel:
			return ctorSentinel + 1
		}
		return prio
	})
}
