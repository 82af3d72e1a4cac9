package resource

// CompilerKind is the closed set of per-type compilers a resource directory is routed to.
type CompilerKind int

const (
	CompilerNone CompilerKind = iota
	CompilerElement
	CompilerGeneric
	CompilerOverlap
	CompilerAppend
)

func (c CompilerKind) String() string {
	switch c {
	case CompilerElement:
		return "element"
	case CompilerGeneric:
		return "generic"
	case CompilerOverlap:
		return "overlap"
	case CompilerAppend:
		return "append"
	default:
		return "none"
	}
}

// PackMode selects how a build treats its inputs.
type PackMode int

const (
	PackNormal PackMode = iota
	PackOverlap
	PackAppend
)

// SelectCompiler picks the compiler for a resource cluster. CompilerNone means the
// type cannot be compiled in the given mode.
func SelectCompiler(t Type, mode PackMode) CompilerKind {
	switch mode {
	case PackAppend:
		switch t {
		case Element:
			return CompilerElement
		case Media, Profile:
			return CompilerAppend
		default:
			return CompilerNone
		}
	case PackOverlap:
		if t == Element {
			return CompilerElement
		}
		return CompilerOverlap
	default:
		if t == Element {
			return CompilerElement
		}
		return CompilerGeneric
	}
}
