package linker_test

import (
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/elfkit/layout/pkg/linker"
)

func cieRecord(fill byte) []byte {
	rec := make([]byte, 16)
	binary.LittleEndian.PutUint32(rec, 12) // length
	// ID word stays zero: CIE
	for i := 8; i < 16; i++ {
		rec[i] = fill
	}
	return rec
}

func fdeRecord(fill byte) []byte {
	rec := make([]byte, 16)
	binary.LittleEndian.PutUint32(rec, 12)
	binary.LittleEndian.PutUint32(rec[4:], 0x18) // back-reference to a CIE
	for i := 8; i < 16; i++ {
		rec[i] = fill
	}
	return rec
}

func newEhFrame() *linker.EhFrameSection {
	return linker.NewEhFrameSection(".eh_frame", uint32(elf.SHT_PROGBITS),
		uint64(elf.SHF_ALLOC), 0)
}

func TestEhFrameDeduplicatesCies(t *testing.T) {
	e := newEhFrame()

	a := linker.NewFragment(".eh_frame", e.Shdr.Type, e.Shdr.Flags, 3, cieRecord(1))
	b := linker.NewFragment(".eh_frame", e.Shdr.Type, e.Shdr.Flags, 3, cieRecord(1))
	fde := linker.NewFragment(".eh_frame", e.Shdr.Type, e.Shdr.Flags, 3, fdeRecord(2))
	e.AddFragment(a)
	e.AddFragment(b)
	e.AddFragment(fde)
	e.Finalize()

	if b.IsAlive {
		t.Error("duplicate CIE still marked alive")
	}
	if b.RelOffset != a.RelOffset {
		t.Errorf("duplicate CIE offset %d does not match canonical %d", b.RelOffset, a.RelOffset)
	}

	// one CIE (16) + one FDE (16) + terminator (4), aligned to 8
	if e.Shdr.Size != 40 {
		t.Errorf("got size %d, expected 40", e.Shdr.Size)
	}
}

func TestEhFrameOrdersCiesBeforeFdes(t *testing.T) {
	e := newEhFrame()

	fde := linker.NewFragment(".eh_frame", e.Shdr.Type, e.Shdr.Flags, 3, fdeRecord(7))
	cie := linker.NewFragment(".eh_frame", e.Shdr.Type, e.Shdr.Flags, 3, cieRecord(7))
	e.AddFragment(fde)
	e.AddFragment(cie)
	e.Finalize()

	if cie.RelOffset >= fde.RelOffset {
		t.Errorf("CIE at %d not placed before FDE at %d", cie.RelOffset, fde.RelOffset)
	}
}

func TestEhFrameWriteToKeepsTerminatorZero(t *testing.T) {
	e := newEhFrame()
	cie := linker.NewFragment(".eh_frame", e.Shdr.Type, e.Shdr.Flags, 3, cieRecord(0xff))
	e.AddFragment(cie)
	e.Finalize()

	ctx := linker.NewContext()
	ctx.Buf = make([]byte, e.Shdr.Size)
	e.WriteTo(ctx)

	end := cie.RelOffset + cie.Size()
	for i := end; i < e.Shdr.Size; i++ {
		if ctx.Buf[i] != 0 {
			t.Fatalf("byte %d after the last record is %#x, expected zero terminator", i, ctx.Buf[i])
		}
	}
	if ctx.Buf[8] != 0xff {
		t.Error("CIE body not copied")
	}
}
