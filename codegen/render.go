package codegen

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/gobuffalo/packr/v2"
)

const (
	SourceName = "ti_radio_config.c"
	HeaderName = "ti_radio_config.h"
)

// Templates gives access to the code templates, a *packr.Box satisfies it
type Templates interface {
	FindString(name string) (string, error)
}

// DefaultTemplates returns the templates shipped with the module
func DefaultTemplates() *packr.Box {
	return packr.New("rfgen code templates", "./templates")
}

// Input is everything rendered in the generated files
type Input struct {
	// SysConfig device name
	Device string
	// database version
	Version   string
	Board     string
	Generator string

	FrontEnd string
	Includes []string
	Bands    []*Band
	Settings []Setting
}

// HasTables reports whether any PA table is exported
func (in *Input) HasTables() bool {
	for _, b := range in.Bands {
		if len(b.Tables) > 0 {
			return true
		}
	}
	return false
}

// Output holds the generated files
type Output struct {
	Source string
	Header string
}

// Files returns the generated files by name
func (o *Output) Files() map[string]string {
	return map[string]string{
		SourceName: o.Source,
		HeaderName: o.Header,
	}
}

type Renderer struct {
	source *template.Template
	header *template.Template
}

func NewRenderer(tpls Templates) (*Renderer, error) {
	source, err := parse(tpls, SourceName+".tmpl")
	if err != nil {
		return nil, err
	}
	header, err := parse(tpls, HeaderName+".tmpl")
	if err != nil {
		return nil, err
	}
	return &Renderer{source: source, header: header}, nil
}

func parse(tpls Templates, name string) (*template.Template, error) {
	s, err := tpls.FindString(name)
	if err != nil {
		return nil, fmt.Errorf("can't open template %s: %w", name, err)
	}
	t, err := template.New(name).Parse(s)
	if err != nil {
		return nil, fmt.Errorf("can't parse template %s: %w", name, err)
	}
	return t, nil
}

// Render executes the templates, the renderer is safe for concurrent use
func (r *Renderer) Render(in *Input) (*Output, error) {
	var src, hdr bytes.Buffer
	if err := r.source.Execute(&src, in); err != nil {
		return nil, fmt.Errorf("can't render %s: %w", SourceName, err)
	}
	if err := r.header.Execute(&hdr, in); err != nil {
		return nil, fmt.Errorf("can't render %s: %w", HeaderName, err)
	}
	return &Output{Source: src.String(), Header: hdr.String()}, nil
}
