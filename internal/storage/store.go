package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/ldpcsim/internal/config"
	"github.com/san-kum/ldpcsim/internal/sim"
)

const (
	KindRun   = "run"
	KindSweep = "sweep"

	metadataFile = "metadata.json"
	pointsFile   = "points.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID           string             `json:"id"`
	Kind         string             `json:"kind"`
	Timestamp    time.Time          `json:"timestamp"`
	MessageBits  int                `json:"message_bits"`
	ParityBits   int                `json:"parity_bits"`
	RowsAtOnce   int                `json:"rows_at_once"`
	ColumnWeight int                `json:"column_weight"`
	MatrixSeed   uint64             `json:"matrix_seed"`
	Decoder      string             `json:"decoder"`
	Compare      string             `json:"compare"`
	BPIterations int                `json:"bp_iterations"`
	Seed         uint64             `json:"seed"`
	Metrics      map[string]float64 `json:"metrics"`
}

func newMetadata(kind string, cfg *config.Config) RunMetadata {
	return RunMetadata{
		ID:           fmt.Sprintf("%s_%s", kind, uuid.NewString()),
		Kind:         kind,
		Timestamp:    time.Now().UTC(),
		MessageBits:  cfg.Code.MessageBits,
		ParityBits:   cfg.Code.ParityBits,
		RowsAtOnce:   cfg.Code.RowsAtOnce,
		ColumnWeight: cfg.ColumnWeight(),
		MatrixSeed:   cfg.Code.MatrixSeed,
		Decoder:      cfg.Decoder,
		Compare:      cfg.Compare,
		BPIterations: cfg.Run.BPIterations,
		Seed:         cfg.Run.Seed,
		Metrics:      map[string]float64{},
	}
}

// SaveRun records a single run. The cumulative accumulator total is stored
// next to the run's own count.
func (s *Store) SaveRun(cfg *config.Config, result *sim.Result, total uint64) (string, error) {
	meta := newMetadata(KindRun, cfg)
	meta.Seed = result.Params.Seed
	meta.BPIterations = result.Params.BPIterations
	meta.Metrics["injected_errors"] = float64(result.Params.InjectedErrors)
	meta.Metrics["bit_errors"] = float64(result.BitErrorCount)
	meta.Metrics["total_errors"] = float64(total)
	meta.Metrics["elapsed_ms"] = result.ElapsedMillis()

	if err := s.writeMetadata(meta); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// SaveSweep records the metadata and the per-point table of a sweep.
func (s *Store) SaveSweep(cfg *config.Config, points []sim.SweepPoint) (string, error) {
	meta := newMetadata(KindSweep, cfg)
	meta.Seed = cfg.Sweep.SeedStart
	meta.Metrics["points"] = float64(len(points))
	meta.Metrics["seeds"] = float64(cfg.Sweep.Seeds)
	if len(points) > 0 {
		meta.Metrics["max_ber"] = points[len(points)-1].BER
	}

	if err := s.writeMetadata(meta); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(s.baseDir, meta.ID, pointsFile))
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(pointHeader); err != nil {
		return "", err
	}
	for _, pt := range points {
		if err := w.Write(pointRow(pt)); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func (s *Store) writeMetadata(meta RunMetadata) error {
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// List returns every stored record, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadPoints reads back the table written by SaveSweep.
func (s *Store) LoadPoints(runID string) ([]sim.SweepPoint, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, pointsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(pointHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.SweepPoint{}, nil
	}

	points := make([]sim.SweepPoint, 0, len(records)-1)
	for i, record := range records[1:] {
		pt, err := parsePoint(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", pointsFile, i+2, err)
		}
		points = append(points, pt)
	}
	return points, nil
}

var pointHeader = []string{"injected", "runs", "mean", "stddev", "max", "failures", "ber", "fer"}

func pointRow(pt sim.SweepPoint) []string {
	return []string{
		strconv.Itoa(pt.Injected),
		strconv.Itoa(pt.Runs),
		strconv.FormatFloat(pt.Mean, 'g', -1, 64),
		strconv.FormatFloat(pt.StdDev, 'g', -1, 64),
		strconv.FormatUint(uint64(pt.Max), 10),
		strconv.Itoa(pt.Failures),
		strconv.FormatFloat(pt.BER, 'g', -1, 64),
		strconv.FormatFloat(pt.FER, 'g', -1, 64),
	}
}

func parsePoint(record []string) (sim.SweepPoint, error) {
	var (
		pt  sim.SweepPoint
		err error
	)
	ints := []*int{&pt.Injected, &pt.Runs}
	for i, dst := range ints {
		if *dst, err = strconv.Atoi(record[i]); err != nil {
			return pt, err
		}
	}
	floats := map[int]*float64{2: &pt.Mean, 3: &pt.StdDev, 6: &pt.BER, 7: &pt.FER}
	for i, dst := range floats {
		if *dst, err = strconv.ParseFloat(record[i], 64); err != nil {
			return pt, err
		}
	}
	max, err := strconv.ParseUint(record[4], 10, 32)
	if err != nil {
		return pt, err
	}
	pt.Max = uint32(max)
	if pt.Failures, err = strconv.Atoi(record[5]); err != nil {
		return pt, err
	}
	return pt, nil
}
