// Package mmwaveserial reads mmWave radar events off a serial line
// protocol supporting JSON-per-line, CSV, and key=value forms.
package mmwaveserial

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.bug.st/serial"

	"github.com/asgard/aegis/internal/ingestion"
	"github.com/asgard/aegis/internal/model"
)

// Config configures a serial mmWave adapter. PortName/Mode are used to
// open a real port; Reader, when set, is used instead (for tests and for
// sources already wrapping another transport).
type Config struct {
	PortName string
	Mode     *serial.Mode
	Reader   io.Reader
}

type Adapter struct {
	cfg     Config
	port    serial.Port
	scanner *bufio.Scanner
}

func New(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// ensureStream lazily opens the configured serial port: no device is
// opened until the first Fetch.
func (a *Adapter) ensureStream() error {
	if a.scanner != nil {
		return nil
	}
	if a.cfg.Reader != nil {
		a.scanner = bufio.NewScanner(a.cfg.Reader)
		return nil
	}
	mode := a.cfg.Mode
	if mode == nil {
		mode = &serial.Mode{BaudRate: 115200}
	}
	port, err := serial.Open(a.cfg.PortName, mode)
	if err != nil {
		return &model.ExporterError{Adapter: "mmwave_serial", Err: err}
	}
	a.port = port
	a.scanner = bufio.NewScanner(port)
	return nil
}

// Fetch drains whatever complete lines are currently buffered and parses
// each into a Raw record. It never blocks waiting for more data than is
// already available on the scanner's buffer boundary.
func (a *Adapter) Fetch() ([]ingestion.Raw, error) {
	if err := a.ensureStream(); err != nil {
		return nil, err
	}
	var out []ingestion.Raw
	for a.scanner.Scan() {
		line := strings.TrimSpace(a.scanner.Text())
		if line == "" {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	if err := a.scanner.Err(); err != nil {
		return out, &model.ExporterError{Adapter: "mmwave_serial", Err: err}
	}
	return out, nil
}

func (a *Adapter) Close() error {
	if a.port != nil {
		return a.port.Close()
	}
	return nil
}

// parseLine dispatches on the line's shape: JSON object, key=value pairs,
// or CSV, matching _parse_line.
func parseLine(line string) (ingestion.Raw, error) {
	var (
		r   ingestion.Raw
		err error
	)
	switch {
	case strings.HasPrefix(line, "{"):
		r, err = parseJSONLine(line)
	case strings.Contains(line, "="):
		r, err = parseKVLine(line)
	default:
		r, err = parseCSVLine(line)
	}
	if err != nil {
		return nil, err
	}
	return normalizeTimestampMS(r), nil
}

// normalizeTimestampMS folds a millisecond timestamp field into the
// seconds-based "timestamp" key the ingestion parsers expect.
func normalizeTimestampMS(r ingestion.Raw) ingestion.Raw {
	if _, hasTS := r["timestamp"]; hasTS {
		return r
	}
	v, ok := r["timestamp_ms"]
	if !ok {
		return r
	}
	f, ok := v.(float64)
	if !ok {
		return r
	}
	r["timestamp"] = f / 1000.0
	delete(r, "timestamp_ms")
	return r
}

func parseJSONLine(line string) (ingestion.Raw, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		return nil, err
	}
	return normalizeConfidence(ingestion.Raw(m)), nil
}

func parseKVLine(line string) (ingestion.Raw, error) {
	r := ingestion.Raw{}
	for _, field := range strings.Split(line, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		parts := strings.SplitN(field, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		r[key] = coerceValue(strings.TrimSpace(parts[1]))
	}
	return normalizeConfidence(r), nil
}

// parseCSVLine handles timestamp_ms,sensor_id,event,confidence[,range_m[,angle_deg]].
func parseCSVLine(line string) (ingestion.Raw, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return nil, fmt.Errorf("mmwave csv line has fewer than 4 fields: %q", line)
	}
	tsMS, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return nil, err
	}
	conf, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return nil, err
	}
	r := ingestion.Raw{
		"timestamp_ms": tsMS,
		"sensor_id":    strings.TrimSpace(fields[1]),
		"event_type":   strings.TrimSpace(fields[2]),
		"confidence":   conf,
	}
	if len(fields) >= 5 {
		if rangeM, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64); err == nil {
			r["range_m"] = rangeM
		}
	}
	if len(fields) >= 6 {
		if angleDeg, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64); err == nil {
			r["angle_degrees"] = angleDeg
		}
	}
	return normalizeConfidence(r), nil
}

// coerceValue matches _coerce_value: try bool, then
// float/int, else leave as string.
func coerceValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// normalizeConfidence divides a percentage-scale confidence (1,100] down
// to [0,1], matching _normalize_confidence.
func normalizeConfidence(r ingestion.Raw) ingestion.Raw {
	v, ok := r["confidence"]
	if !ok {
		return r
	}
	f, ok := v.(float64)
	if !ok {
		return r
	}
	if f > 1 && f <= 100 {
		r["confidence"] = f / 100.0
	}
	return r
}
