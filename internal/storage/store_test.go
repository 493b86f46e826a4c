package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/ldpcsim/internal/compute"
	"github.com/san-kum/ldpcsim/internal/config"
	"github.com/san-kum/ldpcsim/internal/ldpc"
	"github.com/san-kum/ldpcsim/internal/sim"
)

func TestStoreSaveSweep(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	cfg := config.DefaultConfig()
	cfg.Sweep.Seeds = 4
	points := []sim.SweepPoint{
		{Injected: 0, Runs: 4},
		{Injected: 8, Runs: 4, Mean: 1.25, StdDev: 0.5, Max: 2, Failures: 3, BER: 1.25 / 224, FER: 0.75},
	}

	id, err := st.SaveSweep(cfg, points)
	require.NoError(t, err)
	assert.Contains(t, id, KindSweep+"_")

	meta, err := st.Load(id)
	require.NoError(t, err)
	assert.Equal(t, KindSweep, meta.Kind)
	assert.Equal(t, cfg.Code.MessageBits, meta.MessageBits)
	assert.Equal(t, "sum-product", meta.Decoder)
	assert.Equal(t, 2.0, meta.Metrics["points"])

	got, err := st.LoadPoints(id)
	require.NoError(t, err)
	assert.Equal(t, points, got)
}

func TestStoreSaveRunAndList(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	cfg := config.DefaultConfig()

	first, err := st.SaveRun(cfg, &sim.Result{
		Params:        ldpc.RunParams{BPIterations: 5, InjectedErrors: 5, Seed: 2},
		BitErrorCount: 1,
		Elapsed:       2 * time.Millisecond,
	}, 3)
	require.NoError(t, err)
	second, err := st.SaveRun(cfg, &sim.Result{Params: ldpc.RunParams{Seed: 3}}, 3)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "stray.txt"), nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(st.Dir(), "empty"), 0755))

	runs, err := st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, uint64(2), runs[0].Seed)
	assert.Equal(t, 1.0, runs[0].Metrics["bit_errors"])
	assert.Equal(t, 3.0, runs[0].Metrics["total_errors"])

	_, err = st.LoadPoints(first)
	assert.Error(t, err)
}

func TestStoreListMissingDir(t *testing.T) {
	runs, err := New(filepath.Join(t.TempDir(), "absent")).List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig()
	require.NoError(t, WriteJSON(&buf, cfg, []sim.SweepPoint{{Injected: 3, Runs: 1}}))
	assert.Contains(t, buf.String(), `"message_bits": 224`)
	assert.Contains(t, buf.String(), `"Injected": 3`)

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, ExportJSON(path, cfg, nil))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestMatrixDumpRoundTrip(t *testing.T) {
	backend := compute.NewCPUBackend()
	defer backend.Cleanup()

	shape := ldpc.Shape{MessageBits: 24, ParityBits: 16, RowsAtOnce: 8}
	store, err := ldpc.NewMatrixStore(backend, shape, ldpc.MatrixOptions{ColumnWeight: 3, HostVisible: true})
	require.NoError(t, err)
	defer store.Free()
	require.NoError(t, store.Generate(context.Background(), 9))

	path := filepath.Join(t.TempDir(), "matrix.zst")
	require.NoError(t, DumpMatrix(path, store))

	d, err := LoadMatrix(path)
	require.NoError(t, err)
	want, err := store.Map()
	require.NoError(t, err)
	assert.Equal(t, shape, d.Shape)
	assert.Equal(t, 3, d.ColumnWeight)
	assert.Equal(t, uint64(9), d.Seed)
	assert.Equal(t, want, d.Bits)
}

func TestMatrixDumpRejects(t *testing.T) {
	shape := ldpc.Shape{MessageBits: 24, ParityBits: 16, RowsAtOnce: 8}
	err := WriteMatrix(&bytes.Buffer{}, &MatrixDump{Shape: shape, Bits: []byte{1}})
	assert.True(t, errors.Is(err, ErrBadMatrixDump))

	err = WriteMatrix(&bytes.Buffer{}, &MatrixDump{Shape: ldpc.Shape{MessageBits: 24, ParityBits: 16}})
	assert.True(t, errors.Is(err, ErrBadMatrixDump))

	_, err = ReadMatrix(bytes.NewReader([]byte("not a zstd stream")))
	assert.Error(t, err)
}

func encodeHeader(t *testing.T, hdr matrixHeader, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, binary.Write(enc, binary.LittleEndian, &hdr))
	_, err = enc.Write(body)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

func TestMatrixDumpRejectsCorruptHeader(t *testing.T) {
	tests := []struct {
		name string
		hdr  matrixHeader
	}{
		{"zero rows at once", matrixHeader{MessageBits: 24, ParityBits: 16, RowsAtOnce: 0, Length: 80}},
		{"odd rows at once", matrixHeader{MessageBits: 24, ParityBits: 16, RowsAtOnce: 12, Length: 80}},
		{"zero parity", matrixHeader{MessageBits: 24, RowsAtOnce: 8}},
		{"huge dimensions", matrixHeader{MessageBits: 1 << 31, ParityBits: 1 << 31, RowsAtOnce: 64, Length: 1 << 40}},
		{"huge length", matrixHeader{MessageBits: 24, ParityBits: 16, RowsAtOnce: 8, Length: 1 << 40}},
		{"length mismatch", matrixHeader{MessageBits: 24, ParityBits: 16, RowsAtOnce: 8, Length: 81}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.hdr.Magic = matrixMagic
			data := encodeHeader(t, tt.hdr, make([]byte, 80))

			var err error
			require.NotPanics(t, func() { _, err = ReadMatrix(bytes.NewReader(data)) })
			assert.ErrorIs(t, err, ErrBadMatrixDump)
		})
	}
}

func TestMatrixDumpTruncated(t *testing.T) {
	hdr := matrixHeader{Magic: matrixMagic, MessageBits: 24, ParityBits: 16, RowsAtOnce: 8, Length: 80}
	_, err := ReadMatrix(bytes.NewReader(encodeHeader(t, hdr, make([]byte, 10))))
	assert.ErrorIs(t, err, ErrBadMatrixDump)
}

func TestVerifyMatrix(t *testing.T) {
	ctx := context.Background()
	backend := compute.NewCPUBackend()
	defer backend.Cleanup()

	shape := ldpc.Shape{MessageBits: 24, ParityBits: 16, RowsAtOnce: 8}
	store, err := ldpc.NewMatrixStore(backend, shape, ldpc.MatrixOptions{HostVisible: true})
	require.NoError(t, err)
	defer store.Free()
	require.NoError(t, store.Generate(ctx, 5))

	path := filepath.Join(t.TempDir(), "matrix.zst")
	require.NoError(t, DumpMatrix(path, store))
	d, err := LoadMatrix(path)
	require.NoError(t, err)
	require.NoError(t, VerifyMatrix(ctx, backend, d))

	d.Bits[0] ^= 1
	assert.ErrorIs(t, VerifyMatrix(ctx, backend, d), ErrMatrixDiffers)

	d.Bits[0] ^= 1
	d.Seed = 6
	assert.ErrorIs(t, VerifyMatrix(ctx, backend, d), ErrMatrixDiffers)
}
