package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/ldpcsim/internal/config"
	"github.com/san-kum/ldpcsim/internal/sim"
)

type ExportData struct {
	MessageBits  int              `json:"message_bits"`
	ParityBits   int              `json:"parity_bits"`
	RowsAtOnce   int              `json:"rows_at_once"`
	ColumnWeight int              `json:"column_weight"`
	MatrixSeed   uint64           `json:"matrix_seed"`
	Decoder      string           `json:"decoder"`
	Compare      string           `json:"compare"`
	BPIterations int              `json:"bp_iterations"`
	Points       []sim.SweepPoint `json:"points"`
}

func newExport(cfg *config.Config, points []sim.SweepPoint) ExportData {
	return ExportData{
		MessageBits:  cfg.Code.MessageBits,
		ParityBits:   cfg.Code.ParityBits,
		RowsAtOnce:   cfg.Code.RowsAtOnce,
		ColumnWeight: cfg.Code.ColumnWeight,
		MatrixSeed:   cfg.Code.MatrixSeed,
		Decoder:      cfg.Decoder,
		Compare:      cfg.Compare,
		BPIterations: cfg.Run.BPIterations,
		Points:       points,
	}
}

func WriteJSON(w io.Writer, cfg *config.Config, points []sim.SweepPoint) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newExport(cfg, points))
}

func ExportJSON(path string, cfg *config.Config, points []sim.SweepPoint) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, cfg, points)
}
