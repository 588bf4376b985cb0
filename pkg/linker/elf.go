package linker

import (
	"debug/elf"
	"unsafe"
)

const EhdrSize = int(unsafe.Sizeof(Ehdr{}))
const ShdrSize = int(unsafe.Sizeof(Shdr{}))
const PhdrSize = int(unsafe.Sizeof(Phdr{}))

const PageSize = 4096

// Processor-specific unwind-table type; debug/elf does not define it.
const SHT_X86_64_UNWIND = 0x70000001

type Ehdr struct {
	Ident     [16]uint8
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

type Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type Phdr struct {
	Type     uint32
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

func WriteMagic(ident []byte) {
	copy(ident, "\177ELF")
}

func isAlloc(shdr *Shdr) bool {
	return shdr.Flags&uint64(elf.SHF_ALLOC) != 0
}

func isNobits(shdr *Shdr) bool {
	return shdr.Type == uint32(elf.SHT_NOBITS)
}

func isTLS(shdr *Shdr) bool {
	return shdr.Flags&uint64(elf.SHF_TLS) != 0
}

// check if is thread bss section
func isTBSS(shdr *Shdr) bool {
	return isNobits(shdr) && isTLS(shdr)
}
