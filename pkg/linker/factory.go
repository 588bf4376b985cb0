package linker

import (
	"debug/elf"
	"strings"
)

// SectionKey identifies the output section a fragment merges into. Equality
// is exact on all three fields: same-named fragments with different flags or
// alignment get distinct output sections, otherwise merging would either
// under-align one fragment or leak permissions into the merged section.
type SectionKey struct {
	Name      string
	Flags     uint64
	Alignment uint64
}

// OutputSectionFactory places incoming fragments into output sections,
// creating one on first encounter. The master list keeps first-seen order,
// which seeds the default layout order.
type OutputSectionFactory struct {
	ctx *Context
	m   map[SectionKey]Section
}

func NewOutputSectionFactory(ctx *Context) *OutputSectionFactory {
	return &OutputSectionFactory{
		ctx: ctx,
		m:   make(map[SectionKey]Section),
	}
}

// AddFragment never fails: worst case the fragment gets its own singleton
// output section.
func (f *OutputSectionFactory) AddFragment(frag *Fragment, outsecName string) Section {
	name := GetOutputName(outsecName, frag.Flags)
	typ := CanonicalizeType(name, frag.Typ)
	flags := frag.Flags &^ uint64(elf.SHF_GROUP) &^
		uint64(elf.SHF_COMPRESSED) &^ uint64(elf.SHF_LINK_ORDER)

	key := SectionKey{Name: name, Flags: flags, Alignment: frag.Alignment()}
	if osec, ok := f.m[key]; ok {
		osec.AddFragment(frag)
		return osec
	}

	osec := f.newSection(name, typ, flags)
	f.m[key] = osec
	f.ctx.OutputSections = append(f.ctx.OutputSections, osec)
	osec.AddFragment(frag)
	return osec
}

func (f *OutputSectionFactory) newSection(name string, typ uint32, flags uint64) Section {
	idx := uint32(len(f.ctx.OutputSections))
	switch {
	case flags&uint64(elf.SHF_MERGE) != 0:
		return NewMergedSection(name, typ, flags, idx)
	case isEhFrame(name, typ):
		return NewEhFrameSection(name, typ, flags, idx)
	}
	return NewOutputSection(name, typ, flags, idx)
}

func isEhFrame(name string, typ uint32) bool {
	return name == ".eh_frame" || typ == SHT_X86_64_UNWIND
}

var outputPrefixes = []string{
	".text.", ".data.rel.ro.", ".data.", ".rodata.", ".bss.rel.ro.", ".bss.",
	".init_array.", ".fini_array.", ".tbss.", ".tdata.", ".gcc_except_table.",
	".ctors.", ".dtors.",
}

// GetOutputName canonicalizes an input-section name to the output section it
// conventionally lands in, e.g. ".text.startup" -> ".text". Numeric suffixes
// of init/fini and ctor/dtor inputs collapse too; priority sorting reads the
// fragment's own name, not the output name.
func GetOutputName(name string, flags uint64) string {
	if (name == ".rodata" || strings.HasPrefix(name, ".rodata.")) &&
		flags&uint64(elf.SHF_MERGE) != 0 {
		if flags&uint64(elf.SHF_STRINGS) != 0 {
			return ".rodata.str"
		}
		return ".rodata.cst"
	}

	for _, prefix := range outputPrefixes {
		stem := prefix[:len(prefix)-1]
		if name == stem || strings.HasPrefix(name, prefix) {
			return stem
		}
	}
	return name
}

// CanonicalizeType rewrites PROGBITS init/fini array inputs to their
// dedicated section-header types.
func CanonicalizeType(name string, typ uint32) uint32 {
	if typ == uint32(elf.SHT_PROGBITS) {
		if name == ".init_array" || strings.HasPrefix(name, ".init_array.") {
			return uint32(elf.SHT_INIT_ARRAY)
		}
		if name == ".fini_array" || strings.HasPrefix(name, ".fini_array.") {
			return uint32(elf.SHT_FINI_ARRAY)
		}
	}
	return typ
}
