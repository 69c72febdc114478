package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/spherique/internal/config"
	"github.com/san-kum/spherique/internal/metrics"
	"github.com/san-kum/spherique/internal/sim"
	"github.com/san-kum/spherique/internal/trace"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "spawns.csv"
	finalFile    = "final.msgpack"
	statsFile    = "stats.csv"
)

// ErrNoRun is returned when a run directory or one of its files is missing.
var ErrNoRun = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Preset    string             `json:"preset"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      uint64             `json:"seed"`
	Steps     int                `json:"steps"`
	Records   int                `json:"records"`
	Evicted   int                `json:"evicted"`
	Recolored bool               `json:"recolored"`
	Config    config.Config      `json:"config"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes a finished run and returns its id.
func (s *Store) Save(preset string, cfg config.Config, result *sim.Result, samples []metrics.Sample) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	runID, runDir, err := s.newRunDir(preset)
	if err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Preset:    preset,
		Timestamp: time.Now(),
		Seed:      cfg.Seed,
		Steps:     result.StepsTaken,
		Records:   len(result.Trace),
		Evicted:   result.Evicted,
		Config:    cfg,
		Metrics:   result.Metrics,
	}
	if err := s.writeMetadata(meta); err != nil {
		return "", err
	}
	if err := writeTrace(filepath.Join(runDir, traceFile), result.Trace); err != nil {
		return "", err
	}
	if err := writeFinal(filepath.Join(runDir, finalFile), result.Particles); err != nil {
		return "", err
	}
	if err := writeStats(filepath.Join(runDir, statsFile), samples); err != nil {
		return "", err
	}

	return runID, nil
}

// newRunDir creates <preset>_<unix> under the base dir, adding a counter if
// another run already took that second.
func (s *Store) newRunDir(preset string) (string, string, error) {
	base := fmt.Sprintf("%s_%d", preset, time.Now().Unix())
	runID := base
	for i := 1; ; i++ {
		runDir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			return runID, runDir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", err
		}
		runID = fmt.Sprintf("%s_%d", base, i)
	}
}

func (s *Store) writeMetadata(meta RunMetadata) error {
	file, err := os.Create(s.path(meta.ID, metadataFile))
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// List returns every readable run, newest first.
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

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

// Latest returns the newest run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRun
	}
	return &runs[0], nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(s.path(runID, metadataFile))
	if err != nil {
		return nil, notFound(runID, err)
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrace returns the decoded prefix of the trace. A malformed record is
// reported with trace.ErrMalformed alongside the records before it.
func (s *Store) LoadTrace(runID string) ([]trace.Record, error) {
	file, err := os.Open(s.path(runID, traceFile))
	if err != nil {
		return nil, notFound(runID, err)
	}
	defer file.Close()

	return trace.ReadAll(file)
}

// SaveTrace replaces the stored trace, used after recolouring.
func (s *Store) SaveTrace(runID string, records []trace.Record, recolored bool) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	if err := writeTrace(s.path(runID, traceFile), records); err != nil {
		return err
	}
	meta.Records = len(records)
	meta.Recolored = meta.Recolored || recolored
	return s.writeMetadata(*meta)
}

func (s *Store) LoadStats(runID string) ([]metrics.Sample, error) {
	file, err := os.Open(s.path(runID, statsFile))
	if err != nil {
		return nil, notFound(runID, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []metrics.Sample{}, nil
	}

	samples := make([]metrics.Sample, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 4 {
			continue
		}
		var smp metrics.Sample
		var errs [4]error
		smp.Step, errs[0] = strconv.Atoi(record[0])
		smp.Live, errs[1] = strconv.Atoi(record[1])
		smp.Kinetic, errs[2] = strconv.ParseFloat(record[2], 64)
		smp.Contacts, errs[3] = strconv.Atoi(record[3])
		if err := errors.Join(errs[:]...); err != nil {
			continue
		}
		samples = append(samples, smp)
	}
	return samples, nil
}

func (s *Store) path(runID, name string) string {
	return filepath.Join(s.baseDir, runID, name)
}

func notFound(runID string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoRun, runID)
	}
	return err
}

func writeTrace(path string, records []trace.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := trace.Encode(file, records); err != nil {
		return err
	}
	return file.Close()
}

func writeStats(path string, samples []metrics.Sample) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"step", "live", "kinetic", "contacts"}); err != nil {
		return err
	}
	for _, smp := range samples {
		row := []string{
			strconv.Itoa(smp.Step),
			strconv.Itoa(smp.Live),
			strconv.FormatFloat(smp.Kinetic, 'f', 6, 64),
			strconv.Itoa(smp.Contacts),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
