package serialization

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/born-ml/tensornet/internal/network"
	"github.com/born-ml/tensornet/internal/tensor"
)

// decoder reads little-endian fields and keeps the first error.
type decoder struct {
	r   io.Reader
	err error
	buf [8]byte
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) read(p []byte) {
	if d.err == nil {
		_, d.err = io.ReadFull(d.r, p)
	}
}

func (d *decoder) u8() byte {
	d.read(d.buf[:1])
	if d.err != nil {
		return 0
	}
	return d.buf[0]
}

func (d *decoder) u64() uint64 {
	d.read(d.buf[:])
	if d.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(d.buf[:])
}

func (d *decoder) integer() int {
	return int(int64(d.u64()))
}

func (d *decoder) f64() float64 {
	return math.Float64frombits(d.u64())
}

// count reads a non-negative count bounded by maxN.
func (d *decoder) count(field string, maxN int) int {
	v := d.u64()
	if d.err != nil {
		return 0
	}
	n, err := limit(field, v, maxN)
	d.fail(err)
	return n
}

func (d *decoder) str(field string, maxLen int) string {
	n := d.count(field, maxLen)
	if d.err != nil {
		return ""
	}
	p := make([]byte, n)
	d.read(p)
	return string(p)
}

// readStream checks the header, decodes the payload with body and verifies
// the checksum. r may be read past the end of the stream.
func readStream(r io.Reader, want Kind, body func(d *decoder)) error {
	br := bufio.NewReader(r)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(br, magic); err != nil {
		return fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(magic) != MagicBytes {
		return ErrInvalidMagic
	}

	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	if version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	kind, err := br.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read kind: %w", err)
	}
	if Kind(kind) != want {
		return fmt.Errorf("%w: got %s (%d), expected %s", ErrUnexpectedKind, Kind(kind), kind, want)
	}

	hr := newHashingReader(br)
	d := &decoder{r: hr}
	body(d)
	if d.err != nil {
		if errors.Is(d.err, io.EOF) || errors.Is(d.err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated %s payload", ErrCorrupt, want)
		}
		return fmt.Errorf("failed to read %s: %w", want, d.err)
	}

	var stored [ChecksumSize]byte
	if _, err := io.ReadFull(br, stored[:]); err != nil {
		return fmt.Errorf("%w: missing checksum", ErrCorrupt)
	}
	return ValidateChecksum(hr.sum(), stored)
}

// ReadTensor reads a tensor stream.
func ReadTensor(r io.Reader) (*tensor.Tensor, error) {
	var t *tensor.Tensor
	err := readStream(r, KindTensor, func(d *decoder) {
		t = decodeTensor(d)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ReadNetwork reads a network stream and validates the network.
func ReadNetwork(r io.Reader) (*network.Network, error) {
	var n *network.Network
	err := readStream(r, KindNetwork, func(d *decoder) {
		n = decodeNetwork(d)
	})
	if err != nil {
		return nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return n, nil
}

func decodeTensor(d *decoder) *tensor.Tensor {
	rep := d.u8()
	factor := d.f64()
	degree := d.count("degree", MaxDegree)
	dims := make(tensor.Shape, degree)
	for k := range dims {
		dims[k] = d.integer()
	}
	if d.err != nil {
		return nil
	}
	size, err := validateDims(dims)
	if err != nil {
		d.fail(err)
		return nil
	}

	var t *tensor.Tensor
	switch rep {
	case repDense:
		values := make([]float64, 0, min(size, 1<<16))
		for range size {
			values = append(values, d.f64())
			if d.err != nil {
				return nil
			}
		}
		t, err = tensor.FromSlice(dims, values)
	case repSparse:
		nnz := d.count("entries", size)
		positions := make([]int, 0, min(nnz, 1<<16))
		entries := make(map[int]float64, min(nnz, 1<<16))
		for range nnz {
			pos := d.integer()
			v := d.f64()
			if d.err != nil {
				return nil
			}
			positions = append(positions, pos)
			entries[pos] = v
		}
		if err := validateEntries(positions, size); err != nil {
			d.fail(err)
			return nil
		}
		t, err = tensor.FromEntries(dims, entries)
	default:
		err = &ValidationError{Type: "representation", Field: "rep", Details: fmt.Sprintf("unknown tag %d", rep)}
	}
	if err != nil {
		d.fail(err)
		return nil
	}
	t.Scale(factor)
	return t
}

func decodeLink(d *decoder) network.Link {
	l := network.Link{
		Other:         d.integer(),
		IndexPosition: d.integer(),
		Dimension:     d.integer(),
	}
	switch d.u8() {
	case 0:
	case 1:
		l.External = true
	default:
		d.fail(&ValidationError{Type: "link", Field: "external", Details: "flag is neither 0 nor 1"})
	}
	return l
}

func decodeNetwork(d *decoder) *network.Network {
	factor := d.f64()
	name := d.str("strategy", MaxStrategyLen)
	if d.err != nil {
		return nil
	}
	strategy, err := network.StrategyByName(name)
	if err != nil {
		d.fail(&ValidationError{Type: "strategy", Field: "strategy", Details: err.Error()})
		return nil
	}

	n := network.New(network.WithStrategy(strategy))
	n.Factor = factor

	degree := d.count("dimensions", MaxNodes)
	n.Dimensions = make([]int, 0, min(degree, 1<<10))
	for range degree {
		n.Dimensions = append(n.Dimensions, d.integer())
	}
	for k, dim := range n.Dimensions {
		if dim < 0 || dim > MaxDimension {
			d.fail(&ValidationError{Type: "dimension_limit", Field: fmt.Sprintf("dimensions[%d]", k), Details: fmt.Sprintf("got %d", dim)})
			return nil
		}
	}

	links := d.count("external_links", MaxNodes)
	for range links {
		n.ExternalLinks = append(n.ExternalLinks, decodeLink(d))
		if d.err != nil {
			return nil
		}
	}

	count := d.count("nodes", MaxNodes)
	for range count {
		node := network.Node{}
		switch tag := d.u8(); tag {
		case nodeErased:
			node.Erased = true
		case nodeStripped, nodeWithTensor:
			neighbors := d.count("neighbors", MaxDegree)
			node.Neighbors = make([]network.Link, 0, neighbors)
			for range neighbors {
				node.Neighbors = append(node.Neighbors, decodeLink(d))
			}
			if tag == nodeWithTensor && d.err == nil {
				node.Tensor = decodeTensor(d)
			}
		default:
			d.fail(&ValidationError{Type: "node", Field: "tag", Details: fmt.Sprintf("unknown tag %d", tag)})
		}
		if d.err != nil {
			return nil
		}
		n.Nodes = append(n.Nodes, node)
	}
	return n
}
