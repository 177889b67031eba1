package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"

	"github.com/DrSkyle/fleetledger/pkg/engine/lifecycle"
)

// StillRunningMarker stands in for the termination timestamp of instances
// with no observed termination.
const StillRunningMarker = "STILL_RUNNING"

// ExportItem matches the JSON/CSV row structure.
type ExportItem struct {
	Region       string `json:"region"`
	InstanceID   string `json:"instance_id"`
	InstanceType string `json:"instance_type,omitempty"`
	LaunchedAt   string `json:"launched_at"`
	TerminatedAt string `json:"terminated_at"`
	LaunchOrigin string `json:"launch_origin"`
}

type document struct {
	Window      lifecycle.Window `json:"window"`
	GeneratedAt time.Time        `json:"generated_at"`
	Complete    bool             `json:"complete"`
	Regions     []RegionStatus   `json:"regions"`
	Instances   []ExportItem     `json:"instances"`
	Orphans     []string         `json:"orphan_terminations"`
}

// RenderJSON produces the JSON artifact bytes.
func RenderJSON(r *Report) ([]byte, error) {
	doc := document{
		Window:      r.Window,
		GeneratedAt: r.GeneratedAt,
		Complete:    r.Complete(),
		Regions:     r.Regions,
		Instances:   exportItems(r),
		Orphans:     orphanKeys(r),
	}
	return json.MarshalIndent(doc, "", "  ")
}

// RenderCSV produces the CSV artifact bytes. Orphan terminations carry no
// lifecycle row; they travel in the JSON artifact and the summary.
func RenderCSV(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Region", "InstanceID", "InstanceType", "LaunchedAt", "TerminatedAt", "LaunchOrigin"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, item := range exportItems(r) {
		row := []string{
			item.Region,
			item.InstanceID,
			item.InstanceType,
			item.LaunchedAt,
			item.TerminatedAt,
			item.LaunchOrigin,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportItems(r *Report) []ExportItem {
	items := make([]ExportItem, 0, len(r.Records))
	for _, rec := range r.Records {
		item := ExportItem{
			Region:       rec.Key.Region,
			InstanceID:   rec.Key.InstanceID,
			InstanceType: rec.InstanceType,
			LaunchedAt:   rec.LaunchedAt.UTC().Format(time.RFC3339),
			TerminatedAt: StillRunningMarker,
			LaunchOrigin: rec.LaunchOrigin.String(),
		}
		if !rec.StillRunning() {
			item.TerminatedAt = rec.TerminatedAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return items
}

func orphanKeys(r *Report) []string {
	keys := make([]string, 0, len(r.Orphans))
	for _, k := range r.Orphans {
		keys = append(keys, k.String())
	}
	return keys
}
