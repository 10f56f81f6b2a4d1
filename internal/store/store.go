package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Store keeps built problems under baseDir, one directory per run.
type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Timestamp      time.Time      `json:"timestamp"`
	Cyclic         bool           `json:"cyclic"`
	Phases         []PhaseSummary `json:"phases"`
	NumVars        int            `json:"num_vars"`
	NumConstraints int            `json:"num_constraints"`
	MaxViolation   Float          `json:"max_violation"`
	Rows           map[string]int `json:"rows,omitempty"`
}

// Save writes metadata.json, variables.csv and constraints.csv for data.
func (s *Store) Save(meta RunMetadata, data *ExportData) (string, error) {
	ts := s.now()
	runID := fmt.Sprintf("%s_%d", data.Name, ts.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Name = data.Name
	meta.Timestamp = ts
	meta.Phases = data.Phases
	meta.NumVars = data.NumVars
	meta.NumConstraints = data.NumConstraints

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	vars := make([][]string, 0, len(data.Variables)+1)
	vars = append(vars, []string{"name", "lower", "upper", "guess"})
	for _, v := range data.Variables {
		vars = append(vars, []string{v.Name, formatFloat(float64(v.Lower)), formatFloat(float64(v.Upper)), formatFloat(float64(v.Guess))})
	}
	if err := writeCSV(filepath.Join(runDir, "variables.csv"), vars); err != nil {
		return "", err
	}

	rows := make([][]string, 0, len(data.Constraints)+1)
	rows = append(rows, []string{"row", "lower", "upper", "value"})
	for i, r := range data.Constraints {
		value := ""
		if r.Value != nil {
			value = formatFloat(float64(*r.Value))
		}
		rows = append(rows, []string{fmt.Sprint(i), formatFloat(float64(r.Lower)), formatFloat(float64(r.Upper)), value})
	}
	if err := writeCSV(filepath.Join(runDir, "constraints.csv"), rows); err != nil {
		return "", err
	}

	return runID, nil
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}

// List returns the saved runs, oldest first. Directories without readable
// metadata are skipped.
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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadVariables reads back the variable table of a run.
func (s *Store) LoadVariables(runID string) ([]Variable, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "variables.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Variable{}, nil
	}

	out := make([]Variable, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != 4 {
			return nil, fmt.Errorf("variables.csv line %d: %d fields", i+2, len(rec))
		}
		var vals [3]float64
		for j := range vals {
			v, err := parseFloat(rec[j+1])
			if err != nil {
				return nil, fmt.Errorf("variables.csv line %d: %w", i+2, err)
			}
			vals[j] = v
		}
		out = append(out, Variable{Name: rec[0], Lower: Float(vals[0]), Upper: Float(vals[1]), Guess: Float(vals[2])})
	}
	return out, nil
}
