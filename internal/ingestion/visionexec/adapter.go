// Package visionexec runs an external process that emits JSON detection
// records on stdout.
package visionexec

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/asgard/aegis/internal/ingestion"
	"github.com/asgard/aegis/internal/model"
)

type Config struct {
	Command []string
	Timeout time.Duration
}

type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

type wireDetection struct {
	Timestamp  float64   `json:"timestamp"`
	CameraID   string    `json:"camera_id"`
	BBox       [4]float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
	Keypoints  [][2]float64 `json:"keypoints"`
}

// Fetch runs the configured command once and decodes its stdout as a JSON
// array of detection objects.
func (a *Adapter) Fetch(ctx context.Context) ([]ingestion.Raw, error) {
	if len(a.cfg.Command) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, a.cfg.Command[0], a.cfg.Command[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, &model.ExporterError{Adapter: "vision_exec", Err: err}
	}

	var entries []wireDetection
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		return nil, &model.ExporterError{Adapter: "vision_exec", Err: err}
	}

	records := make([]ingestion.Raw, 0, len(entries))
	for _, e := range entries {
		bbox := []any{e.BBox[0], e.BBox[1], e.BBox[2], e.BBox[3]}
		r := ingestion.Raw{
			"timestamp":  e.Timestamp,
			"camera_id":  e.CameraID,
			"bbox":       bbox,
			"confidence": e.Confidence,
		}
		if len(e.Keypoints) > 0 {
			kps := make([]any, len(e.Keypoints))
			for i, kp := range e.Keypoints {
				kps[i] = []any{kp[0], kp[1]}
			}
			r["keypoints"] = kps
		}
		records = append(records, r)
	}
	return records, nil
}
