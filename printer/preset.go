package printer

import (
	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// Preset is a named, YAML-loadable bundle of printer Options. The
// in-process contract stays the closed Options struct; YAML is only a
// convenience for loading a bundle of named presets from a config file
// (§9's redesign note: configuration stays structurally typed, never a
// stringly-typed option map threaded through the printer itself).
type Preset struct {
	Name             string `yaml:"name"`
	KeywordUppercase bool   `yaml:"keyword_uppercase"`
	IdentifierQuote  string `yaml:"identifier_quote"` // "", `"`, "`", "["
	ParameterSymbol  string `yaml:"parameter_symbol"`
	ParameterStyle   string `yaml:"parameter_style"` // "named", "positional", "anonymous"
	IndentSize       int    `yaml:"indent_size"`
	OneLine          bool   `yaml:"one_line"`
}

// presetBundle is the top-level YAML document shape LoadPreset expects:
// a list of named presets.
type presetBundle struct {
	Presets []Preset `yaml:"presets"`
}

// UnsupportedOption is raised by ToOptions when a preset names a value
// outside its closed vocabulary (e.g. an unrecognized parameter_style).
type UnsupportedOption struct {
	Field string
	Value string
	cause error
}

func (e *UnsupportedOption) Error() string {
	return "printer: unsupported option " + e.Field + "=" + e.Value
}

func (e *UnsupportedOption) Unwrap() error { return e.cause }

func newUnsupportedOption(field, value string) *UnsupportedOption {
	e := &UnsupportedOption{Field: field, Value: value}
	e.cause = errors.Annotatef(errors.New(e.Error()), "printer")
	return e
}

// LoadPreset parses a YAML document of named preset bundles and returns
// the map of name to Preset, for a caller to look up by name and
// convert with ToOptions.
func LoadPreset(yamlBytes []byte) (map[string]Preset, error) {
	var bundle presetBundle
	if err := yaml.Unmarshal(yamlBytes, &bundle); err != nil {
		return nil, errors.Annotate(err, "printer: parsing preset YAML")
	}
	out := make(map[string]Preset, len(bundle.Presets))
	for _, p := range bundle.Presets {
		out[p.Name] = p
	}
	return out, nil
}

// ToOptions converts p into a full Options record, starting from
// Default() for every field the preset doesn't name. keyword_uppercase
// is the exception: it is always applied, so a preset that omits it
// gets lowercase keywords.
func (p Preset) ToOptions() (Options, error) {
	opts := Default()

	if p.KeywordUppercase {
		opts.KeywordCase = KeywordUpper
	} else {
		opts.KeywordCase = KeywordLower
	}

	switch p.IdentifierQuote {
	case "":
		// keep Default()'s double-quote
	case `"`:
		opts.IdentifierEscape = IdentifierEscape{Start: `"`, End: `"`}
	case "`":
		opts.IdentifierEscape = IdentifierEscape{Start: "`", End: "`"}
	case "[":
		opts.IdentifierEscape = IdentifierEscape{Start: "[", End: "]"}
	default:
		return Options{}, newUnsupportedOption("identifier_quote", p.IdentifierQuote)
	}

	if p.ParameterSymbol != "" {
		opts.ParameterSymbol = p.ParameterSymbol
	}

	switch p.ParameterStyle {
	case "":
		// keep Default()'s named style
	case "named":
		opts.ParameterStyle = ParamNamedStyle
	case "positional":
		opts.ParameterStyle = ParamPositionalStyle
	case "anonymous":
		opts.ParameterStyle = ParamAnonymousStyle
	default:
		return Options{}, newUnsupportedOption("parameter_style", p.ParameterStyle)
	}

	if p.IndentSize > 0 {
		opts.IndentSize = p.IndentSize
	}

	if p.OneLine {
		opts.Newline = ""
	}

	return opts, nil
}
