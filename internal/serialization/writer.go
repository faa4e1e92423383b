package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/born-ml/tensornet/internal/network"
	"github.com/born-ml/tensornet/internal/tensor"
)

// encoder writes little-endian fields and keeps the first error.
type encoder struct {
	w   *bufio.Writer
	err error
	buf [8]byte
}

func (e *encoder) write(p []byte) {
	if e.err == nil {
		_, e.err = e.w.Write(p)
	}
}

func (e *encoder) u8(v byte) {
	e.write([]byte{v})
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[:], v)
	e.write(e.buf[:])
}

func (e *encoder) integer(v int) {
	e.u64(uint64(int64(v)))
}

func (e *encoder) f64(v float64) {
	e.u64(math.Float64bits(v))
}

func (e *encoder) str(s string) {
	e.integer(len(s))
	e.write([]byte(s))
}

// writeStream writes the header, the payload produced by body and the
// payload checksum.
func writeStream(w io.Writer, kind Kind, body func(e *encoder)) error {
	var header [9]byte
	copy(header[:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	header[8] = byte(kind)
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	h := sha256.New()
	e := &encoder{w: bufio.NewWriter(io.MultiWriter(w, h))}
	body(e)
	if e.err == nil {
		e.err = e.w.Flush()
	}
	if e.err != nil {
		return fmt.Errorf("failed to write %s: %w", kind, e.err)
	}

	if _, err := w.Write(h.Sum(nil)); err != nil {
		return fmt.Errorf("failed to write checksum: %w", err)
	}
	return nil
}

// WriteTensor writes t as a tensor stream. The factor is stored as is.
func WriteTensor(w io.Writer, t *tensor.Tensor) error {
	return writeStream(w, KindTensor, func(e *encoder) {
		encodeTensor(e, t)
	})
}

// WriteNetwork writes n as a network stream, including its strategy.
func WriteNetwork(w io.Writer, n *network.Network) error {
	return writeStream(w, KindNetwork, func(e *encoder) {
		encodeNetwork(e, n)
	})
}

func encodeTensor(e *encoder, t *tensor.Tensor) {
	if t.IsSparse() {
		e.u8(repSparse)
	} else {
		e.u8(repDense)
	}
	e.f64(t.Factor())
	e.integer(t.Degree())
	for _, d := range t.Dims() {
		e.integer(d)
	}

	if t.IsDense() {
		for _, v := range t.UnsanitizedDense() {
			e.f64(v)
		}
		return
	}
	entries := t.UnsanitizedSparse()
	keys := t.SortedKeys()
	e.integer(len(keys))
	for _, pos := range keys {
		e.integer(pos)
		e.f64(entries[pos])
	}
}

func encodeLink(e *encoder, l network.Link) {
	e.integer(l.Other)
	e.integer(l.IndexPosition)
	e.integer(l.Dimension)
	if l.External {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func encodeNetwork(e *encoder, n *network.Network) {
	e.f64(n.Factor)
	e.str(n.Strategy().Name())

	e.integer(len(n.Dimensions))
	for _, d := range n.Dimensions {
		e.integer(d)
	}
	e.integer(len(n.ExternalLinks))
	for _, l := range n.ExternalLinks {
		encodeLink(e, l)
	}

	e.integer(len(n.Nodes))
	for _, node := range n.Nodes {
		switch {
		case node.Erased:
			e.u8(nodeErased)
			continue
		case node.Tensor == nil:
			e.u8(nodeStripped)
		default:
			e.u8(nodeWithTensor)
		}
		e.integer(len(node.Neighbors))
		for _, l := range node.Neighbors {
			encodeLink(e, l)
		}
		if node.Tensor != nil {
			encodeTensor(e, node.Tensor)
		}
	}
}
