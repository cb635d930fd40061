// Package config loads connector properties from YAML or TOML files and
// validates them against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Backend names accepted in the backend property.
const (
	BackendDocument = "document"
	BackendCache    = "cache"
)

// Default property values.
const (
	DefaultSampleSize       = 100
	DefaultInferenceWorkers = 4
	DefaultStorePath        = "docbridge.db"
)

// Properties is the raw connector configuration.
type Properties struct {
	// Backend selects the connector: "document" or "cache".
	Backend string `yaml:"backend" toml:"backend" json:"backend"`

	// StorePath is the document store database file.
	StorePath string `yaml:"store_path" toml:"store_path" json:"store_path"`

	// SampleSize caps documents sampled per logical table during inference.
	SampleSize int `yaml:"sample_size" toml:"sample_size" json:"sample_size"`

	// TypeNameList configures discriminator attributes, see ParseTypeNameList.
	TypeNameList string `yaml:"type_name_list" toml:"type_name_list" json:"type_name_list"`

	// InferenceWorkers bounds concurrent sampling queries.
	InferenceWorkers int `yaml:"inference_workers" toml:"inference_workers" json:"inference_workers"`
}

// Defaults returns the properties used for keys a file leaves out.
func Defaults() Properties {
	return Properties{
		Backend:          BackendDocument,
		StorePath:        DefaultStorePath,
		SampleSize:       DefaultSampleSize,
		InferenceWorkers: DefaultInferenceWorkers,
	}
}

// Config is validated configuration with the type-name list already
// parsed. It is immutable once built.
type Config struct {
	Properties
	TypeNames TypeNameMap
}

// Format identifies a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported config extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// Load reads, decodes and validates a configuration file.
func Load(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeUnreadable, Message: err.Error(), Path: path}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeUnreadable, Message: "read config", Path: path, Err: err}
	}

	cfg, err := Parse(data, format)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	if cfg.Backend == BackendDocument && !filepath.IsAbs(cfg.StorePath) && cfg.StorePath != ":memory:" {
		cfg.StorePath = filepath.Join(filepath.Dir(path), cfg.StorePath)
	}
	return cfg, nil
}

// Parse decodes data in the given format on top of Defaults and validates
// the result. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Config, error) {
	p := Defaults()

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return nil, &Error{Code: ErrCodeUnreadable, Message: "parse YAML", Err: err}
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &p)
		if err != nil {
			return nil, &Error{Code: ErrCodeUnreadable, Message: "parse TOML", Err: err}
		}
		if unknown := md.Undecoded(); len(unknown) > 0 {
			keys := make([]string, len(unknown))
			for i, k := range unknown {
				keys[i] = k.String()
			}
			return nil, &Error{Code: ErrCodeUnreadable, Message: "unknown config keys: " + strings.Join(keys, ", ")}
		}
	default:
		return nil, &Error{Code: ErrCodeUnreadable, Message: fmt.Sprintf("unknown format %q", format)}
	}

	return New(p)
}

// New validates p and parses its type-name list.
func New(p Properties) (*Config, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	return &Config{Properties: p, TypeNames: ParseTypeNameList(p.TypeNameList)}, nil
}

// Validate checks p against the embedded CUE schema.
func Validate(p Properties) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Properties"))
	unified := def.Unify(ctx.Encode(p))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return schemaError(err)
	}
	return nil
}

// schemaError turns CUE validation errors into one Error naming the first
// offending field.
func schemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: ErrCodeInvalid, Message: err.Error(), Err: err}
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	sort.Strings(msgs)

	field := ""
	if path := errs[0].Path(); len(path) > 0 {
		field = path[len(path)-1]
	}
	return &Error{
		Code:    ErrCodeInvalid,
		Message: strings.Join(msgs, "; "),
		Field:   field,
		Err:     err,
	}
}
