package linker_test

import (
	"debug/elf"
	"testing"

	"github.com/elfkit/layout/pkg/linker"
)

func TestFactoryMergesIdenticalKeys(t *testing.T) {
	ctx := linker.NewContext()
	factory := linker.NewOutputSectionFactory(ctx)

	a := newTextFragment(".text.f", 4, make([]byte, 8))
	b := newTextFragment(".text.g", 4, make([]byte, 8))
	sa := factory.AddFragment(a, ".text.f")
	sb := factory.AddFragment(b, ".text.g")

	if sa != sb {
		t.Error("fragments with identical (name, flags, alignment) landed in distinct sections")
	}
	if len(ctx.OutputSections) != 1 {
		t.Errorf("got %d output sections, expected 1", len(ctx.OutputSections))
	}
}

func TestFactorySplitsOnFlags(t *testing.T) {
	ctx := linker.NewContext()
	factory := linker.NewOutputSectionFactory(ctx)

	execOnly := linker.NewFragment(".text", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR), 4, make([]byte, 8))
	execWrite := linker.NewFragment(".text", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR|elf.SHF_WRITE), 4, make([]byte, 8))
	sa := factory.AddFragment(execOnly, ".text")
	sb := factory.AddFragment(execWrite, ".text")

	if sa == sb {
		t.Error("fragments with different flags merged into one section")
	}
	if len(ctx.OutputSections) != 2 {
		t.Errorf("got %d output sections, expected 2", len(ctx.OutputSections))
	}
}

func TestFactorySplitsOnAlignment(t *testing.T) {
	ctx := linker.NewContext()
	factory := linker.NewOutputSectionFactory(ctx)

	sa := factory.AddFragment(newTextFragment(".text", 4, make([]byte, 8)), ".text")
	sb := factory.AddFragment(newTextFragment(".text", 5, make([]byte, 8)), ".text")
	if sa == sb {
		t.Error("fragments with different alignment merged into one section")
	}
}

func TestFactoryIgnoresNonIdentityFlags(t *testing.T) {
	ctx := linker.NewContext()
	factory := linker.NewOutputSectionFactory(ctx)

	plain := linker.NewFragment(".text", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR), 4, make([]byte, 8))
	grouped := linker.NewFragment(".text", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_EXECINSTR|elf.SHF_GROUP), 4, make([]byte, 8))
	if factory.AddFragment(plain, ".text") != factory.AddFragment(grouped, ".text") {
		t.Error("SHF_GROUP should not split output sections")
	}
}

func TestFactoryKeepsFirstSeenOrder(t *testing.T) {
	ctx := linker.NewContext()
	factory := linker.NewOutputSectionFactory(ctx)

	factory.AddFragment(newTextFragment(".text", 4, nil), ".text")
	data := linker.NewFragment(".data", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_WRITE), 3, make([]byte, 8))
	factory.AddFragment(data, ".data")
	factory.AddFragment(newTextFragment(".text", 4, nil), ".text")

	want := []string{".text", ".data"}
	if len(ctx.OutputSections) != len(want) {
		t.Fatalf("got %d output sections, expected %d", len(ctx.OutputSections), len(want))
	}
	for i, osec := range ctx.OutputSections {
		if osec.GetName() != want[i] {
			t.Errorf("position %d: got %s, expected %s", i, osec.GetName(), want[i])
		}
	}
}

func TestFactoryPicksSectionKind(t *testing.T) {
	ctx := linker.NewContext()
	factory := linker.NewOutputSectionFactory(ctx)

	text := factory.AddFragment(newTextFragment(".text", 4, nil), ".text")
	if text.Kind() != linker.KindRegular {
		t.Errorf(".text: got kind %d, expected Regular", text.Kind())
	}

	str := linker.NewFragment(".rodata.str1.1", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC|elf.SHF_MERGE|elf.SHF_STRINGS), 0, []byte("hi\x00"))
	merged := factory.AddFragment(str, ".rodata.str1.1")
	if merged.Kind() != linker.KindMerge {
		t.Errorf("mergeable strings: got kind %d, expected Merge", merged.Kind())
	}
	if merged.GetName() != ".rodata.str" {
		t.Errorf("mergeable strings: got name %s, expected .rodata.str", merged.GetName())
	}

	cie := make([]byte, 16)
	eh := factory.AddFragment(linker.NewFragment(".eh_frame", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC), 3, cie), ".eh_frame")
	if eh.Kind() != linker.KindEHFrame {
		t.Errorf(".eh_frame: got kind %d, expected EHFrame", eh.Kind())
	}

	if _, ok := linker.AsRegular(eh); ok {
		t.Error("checked cast to Regular succeeded on an EHFrame section")
	}
	if _, ok := linker.AsEhFrame(eh); !ok {
		t.Error("checked cast to EHFrame failed on an EHFrame section")
	}
}

func TestGetOutputName(t *testing.T) {
	tests := []struct {
		name  string
		flags uint64
		want  string
	}{
		{".text.startup", 0, ".text"},
		{".text", 0, ".text"},
		{".data.rel.ro.foo", 0, ".data.rel.ro"},
		{".data.local", 0, ".data"},
		{".bss.foo", 0, ".bss"},
		{".init_array.00010", 0, ".init_array"},
		{".ctors.65535", 0, ".ctors"},
		{".rodata.str1.1", uint64(elf.SHF_MERGE | elf.SHF_STRINGS), ".rodata.str"},
		{".rodata.cst8", uint64(elf.SHF_MERGE), ".rodata.cst"},
		{".note.gnu.build-id", 0, ".note.gnu.build-id"},
	}
	for _, tt := range tests {
		if got := linker.GetOutputName(tt.name, tt.flags); got != tt.want {
			t.Errorf("GetOutputName(%s): got %s, expected %s", tt.name, got, tt.want)
		}
	}
}

func TestCanonicalizeType(t *testing.T) {
	got := linker.CanonicalizeType(".init_array", uint32(elf.SHT_PROGBITS))
	if got != uint32(elf.SHT_INIT_ARRAY) {
		t.Errorf(".init_array: got type %d, expected SHT_INIT_ARRAY", got)
	}
	got = linker.CanonicalizeType(".fini_array", uint32(elf.SHT_PROGBITS))
	if got != uint32(elf.SHT_FINI_ARRAY) {
		t.Errorf(".fini_array: got type %d, expected SHT_FINI_ARRAY", got)
	}
	got = linker.CanonicalizeType(".text", uint32(elf.SHT_PROGBITS))
	if got != uint32(elf.SHT_PROGBITS) {
		t.Errorf(".text: got type %d, expected SHT_PROGBITS", got)
	}
}
