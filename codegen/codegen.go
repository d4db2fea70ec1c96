// Package codegen renders resolved override and PA tables into C declarations.
// Every function is deterministic: identical inputs give byte-identical text.
package codegen

import (
	"fmt"
	"strings"

	"github.com/akhenakh/rfgen/devinfo"
	"github.com/akhenakh/rfgen/override"
	"github.com/akhenakh/rfgen/patable"
	"github.com/akhenakh/rfgen/rfdesign"
)

const (
	defaultPtrName = "pRegOverride"
	overrideEnd    = "    (uint32_t)0xFFFFFFFF\n};\n\n"
	tableEnd       = "    RF_TxPowerTable_TERMINATION_ENTRY\n"
)

// Overrides renders the override arrays of t, the default pointer prefix
// pRegOverride being replaced by symName
func Overrides(t *override.Table, symName string) string {
	var b strings.Builder
	for i, s := range t.Structs {
		b.WriteString("// Overrides for " + s.CmdName + "\n")
		b.WriteString("uint32_t " + s.PtrName + "[] =\n{\n")
		for _, f := range s.Fragments {
			b.WriteString("    // " + f.File + "\n")
			for _, e := range f.Elements {
				b.WriteString("    // " + e.Comment + "\n")
				if e.Kind != override.Unknown {
					b.WriteString("    ")
				}
				b.WriteString(e.Text + ",\n")
			}
		}
		if i == 0 {
			for _, c := range t.Custom {
				if c.Path == "" {
					continue
				}
				b.WriteString("    // " + c.Path + "\n")
				b.WriteString("    " + c.Macro + "(),\n")
			}
		}
		b.WriteString(overrideEnd)
	}
	return strings.Replace(b.String(), defaultPtrName, symName, -1)
}

// TxPowerRows renders the rows of a TX power table, without termination
func TxPowerRows(rows []patable.Row, combined bool) string {
	var b strings.Builder
	for _, r := range rows {
		if r.RequiresVddrHH && !combined {
			b.WriteString("    // This setting requires CCFG_FORCE_VDDR_HH = 1.\n")
		}
		if r.Rounded != "" {
			b.WriteString("    // The original PA value (" + r.Rounded + " dBm) has been rounded to an integer value.\n")
		}
		fmt.Fprintf(&b, "    {%d, %s },\n", r.Dbm, r.Entry)
	}
	return b.String()
}

// PaTable is a generated TX power table
type PaTable struct {
	Info     patable.Info
	Combined bool

	// rendered rows, without termination
	Rows string
}

// Band is a frequency band with the PA tables exported for it
type Band struct {
	FbName string
	Tables []PaTable
}

// NewBand returns the tables exported for b: the standard table always, the
// high PA table and the combined table when the high PA serves the band and a
// setting exports them.
func NewBand(b *patable.Band, hiPa bool, m rfdesign.ExportMethods) (*Band, error) {
	fb, err := patable.ShortName(b.Min)
	if err != nil {
		return nil, err
	}
	res := &Band{FbName: fb}
	if m.Total == 0 {
		return res, nil
	}

	info, err := patable.NewInfo(b, false)
	if err != nil {
		return nil, err
	}
	res.Tables = append(res.Tables, PaTable{
		Info: info,
		Rows: TxPowerRows(patable.Rows(b.Table, false), false),
	})
	if !hiPa {
		return res, nil
	}

	if m.Separate > 0 {
		info, err := patable.NewInfo(b, true)
		if err != nil {
			return nil, err
		}
		res.Tables = append(res.Tables, PaTable{
			Info: info,
			Rows: TxPowerRows(patable.Rows(b.TableHi, false), false),
		})
	}
	if m.Combined > 0 {
		info, t, err := patable.CombinedInfo(b)
		if err != nil {
			return nil, err
		}
		res.Tables = append(res.Tables, PaTable{
			Info:     info,
			Combined: true,
			Rows:     TxPowerRows(patable.Rows(t, true), true),
		})
	}
	return res, nil
}

// FrontEnd renders the front end defines of the bands in use
func FrontEnd(c *rfdesign.Config) string {
	var code string
	if c.FbSub1g != rfdesign.BandNone {
		code += frontEnd(c.FeSub1g, "SUB1G")
	}
	if c.Fb24g != rfdesign.BandNone {
		code += frontEnd(c.Fe24g, "24G")
	}
	return code
}

func frontEnd(fe, id string) string {
	var code string
	if strings.Contains(fe, "D") {
		code += "#define FRONTEND_" + id + "_DIFF_RF\n"
	} else {
		code += "#define FRONTEND_" + id + "_SE_RF\n"
	}
	if strings.Contains(fe, "X") {
		code += "#define FRONTEND_" + id + "_EXT_BIAS\n"
	} else {
		code += "#define FRONTEND_" + id + "_INT_BIAS\n"
	}
	return code
}

// Setting is the rendering of one setting instance
type Setting struct {
	Name        string
	Description string
	Phy         string
	File        string

	Frequency float64
	TxPower   string

	Overrides   string
	StructNames []string

	// set when custom overrides follow the database ones
	StackOffsetSymbol string
	StackOffset       int

	// nil when the setting does not export PA tables
	Usage *patable.Usage
}

// NewSetting prepares a setting instance for the templates
func NewSetting(s *rfdesign.Setting, p *devinfo.PhySetting, t *override.Table, usage *patable.Usage) Setting {
	res := Setting{
		Name:        s.Name,
		Description: p.Description,
		Phy:         p.Key.String(),
		File:        p.File,
		Frequency:   s.Freq(p),
		TxPower:     s.TxPower,
		Overrides:   Overrides(t, s.Symbols.Overrides),
		StructNames: t.StructNames(s.Symbols.Overrides),
		Usage:       usage,
	}
	for _, c := range t.Custom {
		if c.Path != "" && len(res.StructNames) > 0 {
			res.StackOffsetSymbol = strings.ToUpper(res.StructNames[0]) + "_STACK_OFFSET"
			res.StackOffset = t.StackOffset
			break
		}
	}
	return res
}

// Includes returns the header paths of the custom overrides, once each
func Includes(custom []override.Custom) []string {
	var res []string
	seen := make(map[string]bool)
	for _, c := range custom {
		if c.Path == "" || seen[c.Path] {
			continue
		}
		seen[c.Path] = true
		res = append(res, c.Path)
	}
	return res
}
