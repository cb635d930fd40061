package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/prometheus/common/expfmt"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docbridge/internal/config"
	"github.com/roach88/docbridge/internal/connector"
	"github.com/roach88/docbridge/internal/harness"
	"github.com/roach88/docbridge/internal/inference"
	"github.com/roach88/docbridge/internal/ir"
	"github.com/roach88/docbridge/internal/metrics"
)

// loadConfig reads the properties file named by opts, or the defaults,
// and applies the backend override.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.Config != "" {
		cfg, err = config.Load(opts.Config)
	} else {
		cfg, err = config.New(config.Defaults())
	}
	if err != nil {
		return nil, err
	}
	if opts.Backend == "" || opts.Backend == cfg.Backend {
		return cfg, nil
	}
	p := cfg.Properties
	p.Backend = opts.Backend
	return config.New(p)
}

// session is an open connector with the data files loaded and the schema
// inferred.
type session struct {
	conn    *connector.Connector
	metrics *metrics.Metrics
	report  *inference.Report
}

func (s *session) Close() error {
	return s.conn.Close()
}

// writeMetrics writes every collected metric family in text format.
func (s *session) writeMetrics(w io.Writer) error {
	families, err := s.metrics.Registry().Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// finish closes the session, writing metrics first when requested.
func (s *session) finish(opts *RootOptions, w io.Writer) {
	if opts.Metrics {
		if err := s.writeMetrics(w); err != nil {
			slog.Warn("metrics not written", "error", err)
		}
	}
	s.Close()
}

// openSession opens the configured backend, loads every data file and
// refreshes the schema. Sampling failures are kept in the report.
func openSession(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, f.Fail(ErrCodeConfig, "load config", err)
	}

	m, err := metrics.New()
	if err != nil {
		return nil, f.Fail(ErrCodeConfig, "register metrics", err)
	}
	conn, err := connector.Open(cfg, connector.WithMetrics(m), connector.WithScope(connector.ScopeRequest))
	if err != nil {
		return nil, f.Fail(ErrCodeConfig, "open backend", err)
	}
	f.VerboseLog("Opened %s backend", conn.Backend())

	for _, path := range opts.Data {
		docs, err := LoadDocuments(path)
		if err != nil {
			conn.Close()
			return nil, f.Fail(ErrCodeData, "load "+path, err)
		}
		for _, ks := range slices.Sorted(maps.Keys(docs)) {
			ids, err := conn.Load(ctx, ks, docs[ks])
			if err != nil {
				conn.Close()
				return nil, f.Fail(ErrCodeData, "load "+path, err)
			}
			f.VerboseLog("Loaded %d document(s) into %s from %s", len(ids), ks, path)
		}
	}

	_, report, err := conn.RefreshSchema(ctx)
	if err != nil {
		conn.Close()
		return nil, f.Fail(ErrCodeInference, "infer schema", err)
	}
	for _, failure := range report.Failures {
		f.VerboseLog("Skipped %v", failure)
	}
	return &session{conn: conn, metrics: m, report: report}, nil
}

// jsonDocument is one entry of a JSON data file.
type jsonDocument struct {
	ID   string          `json:"id"`
	Body json.RawMessage `json:"body"`
}

// LoadDocuments reads a data file mapping keyspaces to documents:
//
//	{"car": [{"id": "c1", "body": {"name": "civic"}}]}
//
// JSON files keep number precision; YAML files use the scenario document
// format.
func LoadDocuments(path string) (map[string][]ir.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var raw map[string][]jsonDocument
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
		out := make(map[string][]ir.Document, len(raw))
		for ks, entries := range raw {
			docs := make([]ir.Document, len(entries))
			for i, e := range entries {
				body, err := ir.UnmarshalIRObject(e.Body)
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", ks, i, err)
				}
				docs[i] = ir.Document{ID: e.ID, Body: body}
			}
			out[ks] = docs
		}
		return out, nil

	case ".yaml", ".yml":
		var raw map[string][]harness.DocumentSpec
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
		s := &harness.Scenario{Documents: raw}
		out := make(map[string][]ir.Document, len(raw))
		for ks := range raw {
			docs, err := s.Load(ks)
			if err != nil {
				return nil, err
			}
			out[ks] = docs
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported data extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}
