package serialization

// Format constants.
const (
	MagicBytes    = "BTNS"
	FormatVersion = 1  // v1: payload followed by SHA-256 checksum
	ChecksumSize  = 32 // SHA-256 checksum size (32 bytes)
)

// Kind identifies the entity stored in a stream.
type Kind byte

// Entity kinds.
const (
	KindTensor  Kind = 1
	KindNetwork Kind = 2
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTensor:
		return "tensor"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Representation tags of a tensor payload.
const (
	repDense  byte = 0
	repSparse byte = 1
)

// Node tags of a network payload.
const (
	nodeErased     byte = 0
	nodeStripped   byte = 1 // live node without a tensor
	nodeWithTensor byte = 2
)
