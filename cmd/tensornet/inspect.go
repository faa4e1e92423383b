package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/tensornet/internal/blobs"
	"github.com/born-ml/tensornet/internal/serialization"
)

func newInspectCmd() *cobra.Command {
	var store string
	cmd := &cobra.Command{
		Use:   "inspect FILE|KEY",
		Short: "Describe a stored tensor or network",
		Long: `Inspect reads a .btns stream, verifies its checksum and prints a
summary. Without --store the argument is a local file path; with --store
it is a key inside that location.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if store != "" {
				var s blobs.Store
				if s, err = blobs.Open(store); err != nil {
					return err
				}
				data, err = s.Get(cmd.Context(), args[0])
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			return inspect(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVar(&store, "store", "", "read KEY from this location: directory or gs://bucket/prefix")
	return cmd
}

func inspect(w io.Writer, data []byte) error {
	kindPos := len(serialization.MagicBytes) + 4
	if len(data) <= kindPos {
		return serialization.ErrCorrupt
	}

	switch serialization.Kind(data[kindPos]) {
	case serialization.KindTensor:
		t, err := serialization.ReadTensor(bytes.NewReader(data))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "tensor\tdims=%v\t%s\tnnz=%d\tfactor=%g\tnorm=%g\n",
			[]int(t.Dims()), t.Representation(), t.NNZ(), t.Factor(), t.FrobNorm())
		return err

	case serialization.KindNetwork:
		n, err := serialization.ReadNetwork(bytes.NewReader(data))
		if err != nil {
			return err
		}
		live := 0
		for k := range n.Nodes {
			if !n.Nodes[k].Erased {
				live++
			}
		}
		norm, err := n.FrobNorm()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "network\tdims=%v\tnodes=%d/%d\tstrategy=%s\tfactor=%g\tnorm=%g\n",
			n.Dimensions, live, len(n.Nodes), n.Strategy().Name(), n.Factor, norm)
		return err

	default:
		return fmt.Errorf("%w: kind %d", serialization.ErrUnexpectedKind, data[kindPos])
	}
}
