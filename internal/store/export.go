package store

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/neonportal/internal/sim"
)

type ExportData struct {
	Preset    string               `json:"preset"`
	Seed      uint32               `json:"seed"`
	Steps     int                  `json:"steps"`
	Particles int                  `json:"particles"`
	Windows   int                  `json:"windows"`
	Snapshots []ExportSnapshot     `json:"snapshots"`
	Series    map[string][]float64 `json:"series"`
	Metrics   map[string]float64   `json:"metrics"`
}

type ExportSnapshot struct {
	Step      int64     `json:"step"`
	Positions []float64 `json:"positions"`
}

func newExportData(meta RunMetadata, result *sim.Result) ExportData {
	data := ExportData{
		Preset:    meta.Preset,
		Seed:      meta.Seed,
		Steps:     result.StepsTaken,
		Particles: meta.Particles,
		Windows:   meta.Windows,
		Snapshots: make([]ExportSnapshot, len(result.Snapshots)),
		Series:    result.Series,
		Metrics:   result.Metrics,
	}
	for i, s := range result.Snapshots {
		data.Snapshots[i] = ExportSnapshot{Step: s.Step, Positions: s.Positions}
	}
	return data
}

func ExportJSON(path string, meta RunMetadata, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return ExportJSONTo(file, meta, result)
}

// ExportJSONTo writes the indented export document to w.
func ExportJSONTo(w io.Writer, meta RunMetadata, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExportData(meta, result))
}
