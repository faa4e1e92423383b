// Package serialization provides the native .btns stream format for tensors
// and tensor networks.
//
// The format is a small, self-describing binary stream:
//
//	Stream Structure:
//	  [4 bytes: Magic "BTNS"]
//	  [4 bytes: Version (uint32 LE)]
//	  [1 byte:  Kind (1 = tensor, 2 = network)]
//	  [Payload: scalar fields, then nested containers recursively]
//	  [32 bytes: SHA-256 checksum of the payload]
//
// All integers are little endian; values are IEEE-754 float64. A tensor
// payload holds its representation, factor, dimensions and either all dense
// values or the sorted sparse entries. A network payload holds its factor,
// strategy, external dimensions and links, then every node with its links
// and tensor.
//
// Readers check magic and version before anything else, enforce size
// limits while decoding, verify the checksum and validate networks.
//
// Example usage:
//
//	var buf bytes.Buffer
//	if err := serialization.WriteTensor(&buf, t); err != nil {
//	    return err
//	}
//	t2, err := serialization.ReadTensor(&buf)
package serialization
