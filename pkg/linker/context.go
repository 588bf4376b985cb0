package linker

type Args struct {
	Output string

	// Raw-binary output mode: no ELF header or program-header table is
	// emitted and GetHeaderSize reports zero.
	OFormatBinary bool

	Machine uint16
}

// Context carries the state of one link invocation. A new link run starts
// from a fresh Context; nothing here outlives the run.
type Context struct {
	Args Args

	// The shared output buffer, pre-sized by AssignFileOffsets' result.
	Buf []byte

	// All output sections in layout order (first-seen order from the
	// factory, synthetic header sections in front).
	OutputSections []Section

	Out Out
}

func NewContext() *Context {
	return &Context{
		Args: Args{
			Output: "a.out",
		},
	}
}
