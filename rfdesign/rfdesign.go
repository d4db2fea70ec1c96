// Package rfdesign reads the RF design of a project: the board it is based on,
// the frequency bands and front ends in use, the high PA assignment and the PHY
// settings it exports.
package rfdesign

import (
	"fmt"
	"io/ioutil"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/akhenakh/rfgen/devinfo"
	"github.com/akhenakh/rfgen/patable"
)

// Frequency band selections
const (
	BandNone = "none"
	Band433  = "fb433"
	Band868  = "fb868"
	Band2400 = "fb2400"
)

// High PA assignments
const (
	PaNone  = "none"
	PaSub1g = "fbSub1g"
	Pa24g   = "fb24g"
)

// Config is an RF design file.
type Config struct {
	// Device is the SysConfig device name, e.g. CC1352P1F3RGZ.
	Device string `yaml:"device,omitempty"`

	// Board is the board selected for the whole project, empty for a custom board.
	// When set it must match RfDesign.
	Board string `yaml:"board,omitempty"`

	// RfDesign is the board the design is based on.
	RfDesign string `yaml:"rfDesign,omitempty"`

	// FbSub1g is one of fb868, fb433 or none.
	FbSub1g string `yaml:"fbSub1g,omitempty"`

	// Fb24g is one of fb2400 or none.
	Fb24g string `yaml:"fb24g,omitempty"`

	// Front ends: X external bias, I internal bias, D differential, S single ended.
	FeSub1g string `yaml:"feSub1g,omitempty"`
	Fe24g   string `yaml:"fe24g,omitempty"`

	// Pa20 assigns the high PA to a band: fbSub1g, fb24g or none.
	Pa20 string `yaml:"pa20,omitempty"`

	CoexEnabled bool `yaml:"coexEnabled,omitempty"`

	// CustomOverrides are appended to the first override struct of every setting.
	CustomOverrides []CustomOverride `yaml:"customOverrides,omitempty"`

	Settings []Setting `yaml:"settings"`
}

// CustomOverride is a header file providing an override macro.
type CustomOverride struct {
	Path  string `yaml:"path"`
	Macro string `yaml:"macro"`
}

// Setting is a PHY setting instance exported by the design.
type Setting struct {
	// Name is the instance name, a C identifier.
	Name    string           `yaml:"name"`
	Group   devinfo.PhyGroup `yaml:"group"`
	PhyType string           `yaml:"phyType"`

	// Frequency is the carrier frequency in MHz, the PHY frequency when zero.
	Frequency float64 `yaml:"frequency,omitempty"`

	HighPA bool `yaml:"highPA,omitempty"`

	// TX powers in dBm as written in the PA tables, the PHY default when empty.
	TxPower   string `yaml:"txPower,omitempty"`
	TxPowerHi string `yaml:"txPowerHi,omitempty"`

	PaExport patable.Export `yaml:"paExport,omitempty"`
	Symbols  Symbols        `yaml:"symbols,omitempty"`
}

// Symbols are the C names exported for a setting.
type Symbols struct {
	TxPower     string `yaml:"txPower,omitempty"`
	TxPowerSize string `yaml:"txPowerSize,omitempty"`
	Overrides   string `yaml:"overrides,omitempty"`
}

var defaultSymbols = map[devinfo.PhyGroup]Symbols{
	devinfo.Prop: {
		TxPower:     "RF_PROP_txPowerTable",
		TxPowerSize: "RF_PROP_TX_POWER_TABLE_SIZE",
		Overrides:   "RF_pOverrides",
	},
	devinfo.BLE: {
		TxPower:     "RF_BLE_txPowerTable",
		TxPowerSize: "RF_BLE_TX_POWER_TABLE_SIZE",
		Overrides:   "RF_ble_pOverrides",
	},
	devinfo.IEEE154: {
		TxPower:     "RF_IEEE_txPowerTable",
		TxPowerSize: "RF_IEEE_TX_POWER_TABLE_SIZE",
		Overrides:   "RF_ieee_pOverrides",
	},
}

// Key returns the database key of the setting PHY
func (s *Setting) Key() devinfo.PhyKey {
	return devinfo.PhyKey{Group: s.Group, Type: s.PhyType}
}

// Freq returns the carrier frequency of the setting, p being its PHY
func (s *Setting) Freq(p *devinfo.PhySetting) float64 {
	if s.Frequency > 0 {
		return s.Frequency
	}
	return p.Frequency
}

// Load reads a YAML RF design file
func Load(path string) (*Config, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read RF design %s: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("can't parse RF design: %w", err)
	}
	return &c, nil
}

// ApplyDefaults fills the unset fields from the database and the selected design
func (c *Config) ApplyDefaults(db *devinfo.Database) error {
	if c.RfDesign == "" {
		switch {
		case c.Board != "":
			c.RfDesign = c.Board
		case len(db.Designs()) > 0:
			c.RfDesign = devinfo.BoardName(db.Designs()[0].Name)
		}
	}

	d, err := db.Design(c.RfDesign)
	if err != nil {
		return err
	}
	r, err := patable.NewResolver(db, c.RfDesign)
	if err != nil {
		return err
	}

	if c.FeSub1g == "" {
		c.FeSub1g = d.Target.FrontEnd
	}
	if c.Fe24g == "" {
		c.Fe24g = d.Target.FrontEnd
	}
	if c.FbSub1g == "" {
		c.FbSub1g = defaultSub1g(db, d, r)
	}
	if c.Fb24g == "" {
		c.Fb24g = BandNone
		if _, err := r.Band(2400); err == nil {
			c.Fb24g = Band2400
		}
	}
	if c.Pa20 == "" {
		c.Pa20 = PaNone
		if db.HighPaSupport {
			c.Pa20 = Pa24g
			if r.Board() == "LAUNCHXL-CC1352P1" {
				c.Pa20 = PaSub1g
			}
		}
	}

	taken := make(map[string]bool)
	pick := func(cur, def, name string) string {
		if cur == "" {
			cur = def
			if taken[cur] {
				cur += "_" + name
			}
		}
		taken[cur] = true
		return cur
	}
	for i := range c.Settings {
		s := &c.Settings[i]
		if s.PaExport == "" {
			s.PaExport = patable.ExportActive
		}
		def := defaultSymbols[s.Group]
		s.Symbols.TxPower = pick(s.Symbols.TxPower, def.TxPower, s.Name)
		s.Symbols.TxPowerSize = pick(s.Symbols.TxPowerSize, def.TxPowerSize, s.Name)
		s.Symbols.Overrides = pick(s.Symbols.Overrides, def.Overrides, s.Name)
	}
	return nil
}

func defaultSub1g(db *devinfo.Database, d *devinfo.Design, r *patable.Resolver) string {
	_, err868 := r.Band(868)
	_, err433 := r.Band(433)
	switch {
	case err868 != nil && err433 != nil:
		return BandNone
	case err433 == nil && (err868 != nil || db.HighPaSupport && optimizedFor433(d)):
		return Band433
	}
	return Band868
}

// optimizedFor433 reports designs characterized for the 433 MHz band
func optimizedFor433(d *devinfo.Design) bool {
	if strings.Contains(d.Target.Description, "431") {
		return true
	}
	return d.Name == "LAUNCHXL-CC1352R1" ||
		strings.Contains(d.Name, "CC1312R1") ||
		d.Name == "LAUNCHXL-CC1352P-4"
}

// DesignName returns the internal name of the selected design
func (c *Config) DesignName() string {
	return devinfo.DesignName(c.RfDesign)
}

// TargetName returns the internal name of the target in use,
// the high PA variant when the high PA is assigned
func (c *Config) TargetName() string {
	name := c.DesignName()
	if c.HighPaAssociation() != PaNone {
		name += "-HIGH-PA"
	}
	return name
}

// HighPaAssociation returns the band the high PA is assigned to
func (c *Config) HighPaAssociation() string {
	if c.Pa20 == "" {
		return PaNone
	}
	return c.Pa20
}

// IsHighPaSupported reports whether the high PA serves freq (MHz)
func (c *Config) IsHighPaSupported(freq float64) bool {
	if c.Fb24g != BandNone && c.Pa20 == Pa24g && freq > 2000 {
		return true
	}
	if c.FbSub1g != BandNone && c.Pa20 == PaSub1g && freq < 1000 {
		return true
	}
	return false
}

// IsFreqBandSelected reports whether the band starting at min (MHz) is part of the design
func (c *Config) IsFreqBandSelected(min int) bool {
	fb, err := patable.ShortName(min)
	if err != nil {
		return false
	}
	if fb == "2400" {
		return c.Fb24g == Band2400
	}
	return c.FbSub1g == "fb"+fb
}

// FrontEnd returns the front end used for a nominal band
func (c *Config) FrontEnd(freqBand int) string {
	if freqBand == 2400 {
		return c.Fe24g
	}
	return c.FeSub1g
}

// ExportMethods counts the PA table export methods used by the settings
type ExportMethods struct {
	Total    int
	Separate int
	Combined int
}

func (c *Config) ExportMethods() ExportMethods {
	var m ExportMethods
	for _, s := range c.Settings {
		switch s.PaExport {
		case patable.ExportCombined:
			m.Combined++
		case patable.ExportNone, "":
		default:
			m.Separate++
		}
	}
	m.Total = m.Separate + m.Combined
	return m
}

// Setting returns a setting by name
func (c *Config) Setting(name string) (*Setting, bool) {
	for i := range c.Settings {
		if c.Settings[i].Name == name {
			return &c.Settings[i], true
		}
	}
	return nil, false
}
