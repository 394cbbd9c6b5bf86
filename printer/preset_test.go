package printer

import "testing"

func TestLoadPresetParsesNamedBundle(t *testing.T) {
	doc := []byte(`
presets:
  - name: compact
    keyword_uppercase: false
    identifier_quote: "`+"`"+`"
    parameter_style: positional
    one_line: true
  - name: readable
    keyword_uppercase: true
    indent_size: 4
`)
	presets, err := LoadPreset(doc)
	if err != nil {
		t.Fatalf("LoadPreset error: %v", err)
	}
	if len(presets) != 2 {
		t.Fatalf("expected 2 presets, got %d", len(presets))
	}

	compact, ok := presets["compact"]
	if !ok {
		t.Fatalf("expected preset %q", "compact")
	}
	opts, err := compact.ToOptions()
	if err != nil {
		t.Fatalf("ToOptions error: %v", err)
	}
	if opts.KeywordCase != KeywordLower {
		t.Errorf("expected lowercase keywords, got %v", opts.KeywordCase)
	}
	if opts.IdentifierEscape.Start != "`" {
		t.Errorf("expected backtick identifier escape, got %q", opts.IdentifierEscape.Start)
	}
	if opts.ParameterStyle != ParamPositionalStyle {
		t.Errorf("expected positional parameter style, got %v", opts.ParameterStyle)
	}
}

func TestPresetToOptionsRejectsUnknownParameterStyle(t *testing.T) {
	p := Preset{ParameterStyle: "exotic"}
	_, err := p.ToOptions()
	if err == nil {
		t.Fatalf("expected UnsupportedOption")
	}
	uerr, ok := err.(*UnsupportedOption)
	if !ok || uerr.Field != "parameter_style" {
		t.Errorf("expected UnsupportedOption{parameter_style}, got %#v", err)
	}
}
