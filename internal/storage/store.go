// Package storage keeps finished runs on disk, one directory per run with
// metadata.json and log.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/san-kum/servoloop/internal/datalog"
	"github.com/san-kum/servoloop/internal/experiment"
)

var (
	ErrNotFound  = errors.New("storage: run not found")
	ErrMalformed = errors.New("storage: malformed log")
)

const (
	metadataFile = "metadata.json"
	logFile      = "log.csv"
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

type RunMetadata struct {
	ID         string             `json:"id"`
	Motor      string             `json:"motor"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	GearRatio  float64            `json:"gear_ratio"`
	Ticks      int                `json:"ticks"`
	Final      string             `json:"final_state"`
	Angle      int64              `json:"final_angle"`
	Errors     []string           `json:"errors,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Metadata summarizes a result for storage.
func Metadata(res *experiment.Result) RunMetadata {
	meta := RunMetadata{
		Motor:      res.Config.Motor,
		Timestamp:  time.Now(),
		Seed:       res.Config.Seed,
		Duration:   res.Config.Duration,
		Integrator: res.Config.Integrator,
		GearRatio:  res.Config.GearRatio,
		Ticks:      res.Ticks,
		Final:      res.Final.String(),
		Angle:      res.Angle,
		Metrics:    map[string]float64{},
	}
	if port, err := res.Config.ServoPort(); err == nil {
		for name, v := range res.Metrics[port] {
			meta.Metrics[name] = v
		}
	}
	for _, err := range res.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}
	return meta
}

// Save writes a run directory and returns its ID.
func (s *Store) Save(res *experiment.Result) (string, error) {
	meta := Metadata(res)
	meta.ID = fmt.Sprintf("%s_%d", meta.Motor, meta.Timestamp.UnixNano())
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", errors.Wrap(err, "storage: create run")
	}
	if err := writeFile(filepath.Join(runDir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}
	if err := writeFile(filepath.Join(runDir, logFile), func(w io.Writer) error {
		return WriteCSV(w, res.Rows)
	}); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "storage")
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))
	return errors.Wrapf(fn(f), "storage: write %s", filepath.Base(path))
}

// List returns every stored run, oldest first. Directories without
// readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, errors.Wrap(err, "storage: list")
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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%q", runID)
		}
		return nil, errors.Wrap(err, "storage: load")
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "storage: decode %s", runID)
	}
	return &meta, nil
}

// LoadRows reads the logged rows of a run.
func (s *Store) LoadRows(runID string) (rows []datalog.Row, err error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, logFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%q", runID)
		}
		return nil, errors.Wrap(err, "storage: load rows")
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))
	return ReadCSV(f)
}

// WriteCSV writes rows under datalog.Header.
func WriteCSV(w io.Writer, rows []datalog.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(datalog.Header); err != nil {
		return err
	}
	record := make([]string, len(datalog.Header))
	for _, r := range rows {
		record[0] = strconv.FormatInt(int64(r.Time), 10)
		record[1] = strconv.FormatInt(r.Measured, 10)
		record[2] = strconv.FormatInt(r.RefAngle, 10)
		record[3] = strconv.FormatInt(int64(r.RefSpeed), 10)
		record[4] = strconv.FormatInt(r.EstAngle, 10)
		record[5] = strconv.FormatInt(int64(r.EstSpeed), 10)
		record[6] = strconv.FormatInt(int64(r.EstCurrent), 10)
		record[7] = strconv.FormatInt(int64(r.Torque), 10)
		record[8] = strconv.FormatInt(int64(r.Voltage), 10)
		record[9] = strconv.FormatUint(uint64(r.State), 10)
		record[10] = strconv.FormatBool(r.Stalled)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses rows written by WriteCSV.
func ReadCSV(r io.Reader) ([]datalog.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(datalog.Header)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	if len(records) == 0 {
		return nil, errors.Wrap(ErrMalformed, "missing header")
	}

	rows := make([]datalog.Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseRow(rec)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "line %d: %v", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (datalog.Row, error) {
	var (
		row  datalog.Row
		errs error
	)
	i32 := func(s string) int32 {
		v, err := strconv.ParseInt(s, 10, 32)
		errs = multierr.Append(errs, err)
		return int32(v)
	}
	i64 := func(s string) int64 {
		v, err := strconv.ParseInt(s, 10, 64)
		errs = multierr.Append(errs, err)
		return v
	}
	row.Time = i32(rec[0])
	row.Measured = i64(rec[1])
	row.RefAngle = i64(rec[2])
	row.RefSpeed = i32(rec[3])
	row.EstAngle = i64(rec[4])
	row.EstSpeed = i32(rec[5])
	row.EstCurrent = i32(rec[6])
	row.Torque = i32(rec[7])
	row.Voltage = i32(rec[8])
	state, err := strconv.ParseUint(rec[9], 10, 8)
	errs = multierr.Append(errs, err)
	row.State = uint8(state)
	row.Stalled, err = strconv.ParseBool(rec[10])
	errs = multierr.Append(errs, err)
	return row, errs
}
