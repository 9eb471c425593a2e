package fastrpc

import (
	"io"
)

// Serializable is the contract for every message that crosses a replica
// connection. Implementations marshal themselves directly onto the wire
// with no reflection and no framing beyond the leading message-type byte
// written by the sender.
type Serializable interface {
	Marshal(io.Writer)
	Unmarshal(io.Reader) error
	New() Serializable
}
