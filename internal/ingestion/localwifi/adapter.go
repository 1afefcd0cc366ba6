// Package localwifi scans for nearby access points using the system's
// "iw" tool and optionally overlays CSI capture timestamps.
package localwifi

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/asgard/aegis/internal/ingestion"
	"github.com/asgard/aegis/internal/model"
)

// Config configures the local scan adapter. CSICommand is optional; when
// set and PreferCSITimestamp is true, a successful CSI capture's reported
// timestamp supersedes the scan timestamp. PreferCSITimestamp defaults to
// false (its zero value), which keeps the scan timestamp.
type Config struct {
	Interface           string
	ScanCommand          []string // defaults to ["iw", "dev", Interface, "scan"]
	CSICommand           []string
	PreferCSITimestamp   bool
	Timeout              time.Duration
	Now                  func() time.Time
	Runner               CommandRunner
}

// CommandRunner abstracts process execution so tests can inject canned
// output without shelling out.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

type Adapter struct {
	cfg Config
}

func New(cfg Config) *Adapter {
	if cfg.Runner == nil {
		cfg.Runner = execRunner{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.ScanCommand) == 0 {
		cfg.ScanCommand = []string{"iw", "dev", cfg.Interface, "scan"}
	}
	return &Adapter{cfg: cfg}
}

var (
	bssRe  = regexp.MustCompile(`(?m)^BSS ([0-9a-fA-F:]{17})`)
	ssidRe = regexp.MustCompile(`(?m)\s*SSID: (.*)$`)
	sigRe  = regexp.MustCompile(`(?m)\s*signal: (-?[0-9.]+) dBm`)
	freqRe = regexp.MustCompile(`(?m)\s*freq: ([0-9]+)`)
)

// Fetch runs the scan command, parses its text output into one raw
// record per BSS entry, and overlays a CSI-derived timestamp when
// configured.
func (a *Adapter) Fetch(ctx context.Context) ([]ingestion.Raw, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	out, err := a.cfg.Runner.Run(ctx, a.cfg.ScanCommand[0], a.cfg.ScanCommand[1:]...)
	if err != nil {
		return nil, &model.ExporterError{Adapter: "local_wifi", Err: err}
	}

	scanTime := a.cfg.Now()
	records := parseIWScan(string(out), scanTime)

	if len(a.cfg.CSICommand) > 0 {
		if csiOut, err := a.cfg.Runner.Run(ctx, a.cfg.CSICommand[0], a.cfg.CSICommand[1:]...); err == nil {
			if csiTS, ok := parseCSITimestamp(string(csiOut)); ok && a.cfg.PreferCSITimestamp {
				for i := range records {
					records[i]["timestamp"] = csiTS
				}
			}
		}
	}

	return records, nil
}

// parseIWScan extracts BSSID/signal/SSID/frequency from `iw dev <iface>
// scan` text output. Entries without a parseable signal are skipped.
func parseIWScan(output string, scanTime time.Time) []ingestion.Raw {
	bssMatches := bssRe.FindAllStringSubmatchIndex(output, -1)
	var out []ingestion.Raw
	for i, m := range bssMatches {
		start := m[1]
		end := len(output)
		if i+1 < len(bssMatches) {
			end = bssMatches[i+1][0]
		}
		block := output[start:end]
		bssid := output[m[2]:m[3]]

		sigMatch := sigRe.FindStringSubmatch(block)
		if sigMatch == nil {
			continue
		}
		signal, err := strconv.ParseFloat(sigMatch[1], 64)
		if err != nil {
			continue
		}

		r := ingestion.Raw{
			"access_point_id": bssid,
			"rssi":            signal,
			"timestamp":       scanTime,
		}
		if ssidMatch := ssidRe.FindStringSubmatch(block); ssidMatch != nil {
			r["metadata"] = map[string]any{"ssid": ssidMatch[1]}
		}
		if freqMatch := freqRe.FindStringSubmatch(block); freqMatch != nil {
			if freq, err := strconv.Atoi(freqMatch[1]); err == nil {
				meta, _ := r["metadata"].(map[string]any)
				if meta == nil {
					meta = map[string]any{}
				}
				meta["frequency_mhz"] = float64(freq)
				r["metadata"] = meta
			}
		}
		out = append(out, r)
	}
	return out
}

var csiTimestampRe = regexp.MustCompile(`timestamp[:=]\s*([0-9.]+)`)

func parseCSITimestamp(output string) (time.Time, bool) {
	m := csiTimestampRe.FindStringSubmatch(output)
	if m == nil {
		return time.Time{}, false
	}
	sec, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, int64(sec*1e9)).UTC(), true
}
