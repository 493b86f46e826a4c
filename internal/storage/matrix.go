package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/ldpc"
)

var (
	ErrBadMatrixDump = errors.New("storage: bad matrix dump")
	ErrMatrixDiffers = errors.New("storage: matrix dump differs from its seed")
)

var matrixMagic = [8]byte{'L', 'D', 'P', 'C', 'H', 'M', 'X', '1'}

// Dumps larger than this are rejected before anything is allocated.
const (
	maxDumpDimension = 1 << 20
	maxDumpBytes     = 1 << 30
)

// MatrixDump is a packed parity-check matrix together with the values that
// reproduce it.
type MatrixDump struct {
	Shape        ldpc.Shape
	ColumnWeight int
	Seed         uint64
	Bits         []byte
}

type matrixHeader struct {
	Magic        [8]byte
	MessageBits  uint32
	ParityBits   uint32
	RowsAtOnce   uint32
	ColumnWeight uint32
	Seed         uint64
	Length       uint64
}

// WriteMatrix writes d as a zstd stream: a fixed little-endian header then
// the packed matrix bytes.
func WriteMatrix(w io.Writer, d *MatrixDump) error {
	if err := d.Shape.ValidateFor(ldpc.ModeEncodeOnly); err != nil {
		return fmt.Errorf("%w: %v", ErrBadMatrixDump, err)
	}
	if want := d.Shape.MatrixBytes(); len(d.Bits) != want {
		return fmt.Errorf("%w: %d bytes for a %d byte matrix", ErrBadMatrixDump, len(d.Bits), want)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	hdr := matrixHeader{
		Magic:        matrixMagic,
		MessageBits:  uint32(d.Shape.MessageBits),
		ParityBits:   uint32(d.Shape.ParityBits),
		RowsAtOnce:   uint32(d.Shape.RowsAtOnce),
		ColumnWeight: uint32(d.ColumnWeight),
		Seed:         d.Seed,
		Length:       uint64(len(d.Bits)),
	}
	if err := binary.Write(enc, binary.LittleEndian, &hdr); err != nil {
		enc.Close()
		return err
	}
	if _, err := enc.Write(d.Bits); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func ReadMatrix(r io.Reader) (*MatrixDump, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var hdr matrixHeader
	if err := binary.Read(dec, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMatrixDump, err)
	}
	if hdr.Magic != matrixMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadMatrixDump, hdr.Magic[:])
	}

	d := &MatrixDump{
		Shape: ldpc.Shape{
			MessageBits: int(hdr.MessageBits),
			ParityBits:  int(hdr.ParityBits),
			RowsAtOnce:  int(hdr.RowsAtOnce),
		},
		ColumnWeight: int(hdr.ColumnWeight),
		Seed:         hdr.Seed,
	}
	if hdr.MessageBits > maxDumpDimension || hdr.ParityBits > maxDumpDimension || hdr.Length > maxDumpBytes {
		return nil, fmt.Errorf("%w: %s with %d bytes exceeds the dump limits", ErrBadMatrixDump, d.Shape, hdr.Length)
	}
	if err := d.Shape.ValidateFor(ldpc.ModeEncodeOnly); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMatrixDump, err)
	}
	if want := d.Shape.MatrixBytes(); uint64(want) != hdr.Length {
		return nil, fmt.Errorf("%w: length %d for a %d byte matrix", ErrBadMatrixDump, hdr.Length, want)
	}
	d.Bits = make([]byte, hdr.Length)
	if _, err := io.ReadFull(dec, d.Bits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMatrixDump, err)
	}
	return d, nil
}

// DumpMatrix reads the generated matrix back from the store and writes it
// to path.
func DumpMatrix(path string, store *ldpc.MatrixStore) error {
	bits, err := store.Map()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteMatrix(f, &MatrixDump{
		Shape:        store.Shape(),
		ColumnWeight: store.ColumnWeight(),
		Seed:         store.Seed(),
		Bits:         bits,
	})
}

func LoadMatrix(path string) (*MatrixDump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadMatrix(f)
}

// VerifyMatrix regenerates the matrix from the dump's shape, weight and seed
// on backend and checks that the image matches bit for bit.
func VerifyMatrix(ctx context.Context, backend compute.Backend, d *MatrixDump) error {
	store, err := ldpc.NewMatrixStore(backend, d.Shape, ldpc.MatrixOptions{
		ColumnWeight: d.ColumnWeight,
		HostVisible:  true,
	})
	if err != nil {
		return err
	}
	defer store.Free()
	if err := store.Generate(ctx, d.Seed); err != nil {
		return err
	}
	bits, err := store.Map()
	if err != nil {
		return err
	}
	if !bytes.Equal(bits, d.Bits) {
		return fmt.Errorf("%w: %s seed %d", ErrMatrixDiffers, d.Shape, d.Seed)
	}
	return nil
}
