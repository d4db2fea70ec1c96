package patable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akhenakh/rfgen/devinfo"
)

// Export is how a setting exports its PA tables
type Export string

const (
	ExportNone     Export = "none"
	ExportActive   Export = "active"
	ExportDual     Export = "dual"
	ExportCombined Export = "combined"
)

func ParseExport(s string) (Export, error) {
	switch Export(s) {
	case ExportNone, ExportActive, ExportDual, ExportCombined:
		return Export(s), nil
	}
	return "", fmt.Errorf("invalid PA export %q", s)
}

// ShortName returns the band name for the lower edge of a band
func ShortName(min int) (string, error) {
	switch min {
	case 420, 431:
		return "433", nil
	case 770:
		return "868", nil
	case 2400:
		return "2400", nil
	}
	return "", fmt.Errorf("no band name for %d MHz: %w", min, ErrNoBand)
}

// Info names a generated PA table
type Info struct {
	FbName      string
	Pa          string
	Description string
	Symbol      string
	SizeSymbol  string

	// rows including the termination entry
	Size int
}

// NewInfo returns the naming of the standard or high PA table of b,
// the PA id is the power of its first entry
func NewInfo(b *Band, highPA bool) (Info, error) {
	fb, err := ShortName(b.Min)
	if err != nil {
		return Info{}, err
	}
	t, err := b.PaTable(highPA)
	if err != nil {
		return Info{}, err
	}
	pa := paID(t[0])
	sym := "txPowerTable_" + fb + "_pa" + pa
	return Info{
		FbName:      fb,
		Pa:          pa,
		Description: fb + " MHz, " + pa + " dBm",
		Symbol:      sym,
		SizeSymbol:  strings.ToUpper(sym) + "_SIZE",
		Size:        len(t) + 1,
	}, nil
}

// CombinedInfo returns the combined table of b and its naming
func CombinedInfo(b *Band) (Info, Table, error) {
	std, err := NewInfo(b, false)
	if err != nil {
		return Info{}, nil, err
	}
	hi, err := NewInfo(b, true)
	if err != nil {
		return Info{}, nil, err
	}
	t := Combine(b.Table, b.TableHi)
	sym := "txPowerTable_" + std.FbName + "_pa" + std.Pa + "_" + hi.Pa
	return Info{
		FbName:      std.FbName,
		Pa:          std.Pa,
		Description: std.FbName + " MHz, " + std.Pa + " + " + hi.Pa + " dBm",
		Symbol:      sym,
		SizeSymbol:  strings.ToUpper(sym) + "_SIZE",
		Size:        len(t) + 1,
	}, t, nil
}

func paID(e devinfo.PaSetting) string {
	if e.Dbm > 12 && e.Dbm < 15 {
		return "13"
	}
	return e.Text
}

// TableName returns the table symbol for a band name and PA ids, paHigh is
// only set for combined tables
func (r *Resolver) TableName(fb, pa, paHigh string) string {
	name := "txPowerTable_" + fb + "_pa" + r.paName(pa)
	if paHigh != "" {
		name += "_" + r.paName(paHigh)
	}
	return name
}

func (r *Resolver) paName(pa string) string {
	// the wide band board high PA is a 10 dBm PA
	if r.board == wideband24GBoard && pa == "20" {
		return "10"
	}
	if v, err := strconv.ParseFloat(pa, 64); err == nil && v > 12 && v < 15 {
		return "13"
	}
	return pa
}

// UsageRequest describes the PA export of one setting
type UsageRequest struct {
	// nominal band: 433, 868 or 2400
	FreqBand int
	HighPA   bool
	Export   Export

	TxPower     string
	TxPowerSize string
}

// Usage is the pair of defines pointing a setting to its PA table
type Usage struct {
	Code string
	Size string
}

// Usage returns the PA table defines of a setting, nil when it does not export
// any. designHighPA reports a high PA assigned in the RF design.
func (r *Resolver) Usage(req UsageRequest, designHighPA bool) *Usage {
	if req.Export == ExportNone || req.Export == "" {
		return nil
	}
	fb := strconv.Itoa(req.FreqBand)
	pa := "5"
	if req.FreqBand < 1000 {
		pa = "13"
	}

	var paHi string
	switch req.Export {
	case ExportActive:
		if designHighPA && req.HighPA {
			pa = "20"
		}
	case ExportCombined:
		if designHighPA && req.HighPA {
			paHi = "20"
		}
	}

	if req.Export == ExportDual {
		std := r.TableName(fb, pa, "")
		hi := r.TableName(fb, "20", "")
		return &Usage{
			Code: "#define " + req.TxPower + "TxStd " + std + "\n" +
				"#define " + req.TxPower + "Tx20 " + hi + "\n",
			Size: "#define " + req.TxPowerSize + "_TXSTD " + strings.ToUpper(std) + "_SIZE\n" +
				"#define " + req.TxPowerSize + "_TX20 " + strings.ToUpper(hi) + "_SIZE\n",
		}
	}
	code := r.TableName(fb, pa, paHi)
	return &Usage{
		Code: "#define " + req.TxPower + " " + code + "\n",
		Size: "#define " + req.TxPowerSize + " " + strings.ToUpper(code) + "_SIZE\n",
	}
}
