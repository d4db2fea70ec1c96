package rfdesign

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/akhenakh/rfgen/devinfo"
	"github.com/akhenakh/rfgen/patable"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a validation finding attached to a field of the design,
// setting fields are prefixed with settings.<name>.
type Issue struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return string(i.Severity) + ": " + i.Field + ": " + i.Message
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// HasErrors reports whether issues contains an error
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

type validator struct {
	issues []Issue
}

func (v *validator) errorf(field, format string, args ...interface{}) {
	v.issues = append(v.issues, Issue{Severity: SeverityError, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warnf(field, format string, args ...interface{}) {
	v.issues = append(v.issues, Issue{Severity: SeverityWarning, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the design against the database, it never fails but reports issues
func (c *Config) Validate(db *devinfo.Database) []Issue {
	v := &validator{}

	if c.Board != "" && devinfo.DesignName(c.Board) != c.DesignName() {
		v.errorf("rfDesign", "RF Design must align with board selection: %s", c.Board)
		return v.issues
	}

	r, err := patable.NewResolver(db, c.RfDesign)
	if err != nil {
		v.errorf("rfDesign", "%v", err)
		return v.issues
	}

	useHpa := c.HighPaAssociation() != PaNone
	if useHpa {
		if !db.HighPaSupport {
			v.errorf("pa20", "High PA not supported by device %s", db.Name)
			return v.issues
		}
		if c.Fb24g == BandNone && c.Pa20 == Pa24g {
			v.warnf("pa20", "The High Power Output selection requires the 2.4 GHz band to be included.")
			return v.issues
		}
		if c.FbSub1g == BandNone && c.Pa20 == PaSub1g {
			v.warnf("fbSub1g", "The High Power Output selection requires a Sub-1 GHz band to be included.")
			return v.issues
		}
	}

	for i, o := range c.CustomOverrides {
		if o.Path == "" || !identRe.MatchString(o.Macro) {
			v.errorf("customOverrides."+strconv.Itoa(i), "custom override needs a path and a macro name")
		}
	}

	for i := range c.Settings {
		c.validateSetting(v, db, r, &c.Settings[i], useHpa)
	}
	c.validateSymbols(v)

	return v.issues
}

func (c *Config) validateSetting(v *validator, db *devinfo.Database, r *patable.Resolver, s *Setting, useHpa bool) {
	field := func(name string) string {
		return "settings." + s.Name + "." + name
	}

	if !identRe.MatchString(s.Name) {
		v.errorf(field("name"), "setting name must be a C identifier")
	}
	p, err := db.Phy(s.Key())
	if err != nil {
		v.errorf(field("phyType"), "%v", err)
		return
	}

	freq := s.Freq(p)
	fb := devinfo.FreqBand(freq)
	phy := s.Key().String()

	switch fb {
	case 433, 868:
		if c.FbSub1g != "fb"+strconv.Itoa(fb) {
			v.errorf(field("freqBand"), "The %d MHz band is not supported in this RF design", fb)
			v.errorf("fbSub1g", "RF Stack uses PHY %s, designed for the %d MHz frequency band", phy, fb)
			return
		}
	case 2400:
		if c.Fb24g == BandNone {
			v.errorf(field("frequency"), "The 2400 MHz band is not supported in this RF design")
			v.errorf("fb24g", "RF Stack uses PHY %s, designed for the 2.4 GHz frequency band", phy)
			return
		}
	}

	if _, err := r.Band(freq); err != nil {
		v.errorf(field("frequency"), "%v", err)
		return
	}

	if s.PaExport == patable.ExportCombined && !c.IsHighPaSupported(freq) {
		msg := "Combined PA tables without High PA is not possible"
		v.errorf("pa20", msg)
		v.errorf(field("paExport"), msg)
		return
	}

	if useHpa {
		if c.Pa20 != Pa24g && fb == 2400 && s.HighPA {
			v.errorf("pa20", "RF design does not support high PA for 2.4 GHz frequency band. Required by: %s", phy)
			v.errorf(field("highPA"), "High PA for the %d frequency band is not part of the RF Design", fb)
		}
		if c.Pa20 != PaSub1g && fb < 1000 && s.HighPA {
			v.errorf("pa20", "RF design does not support high PA for Sub-1 GHz frequency band. Required by: %s", phy)
			v.errorf(field("highPA"), "High PA for the %d frequency band is not part of the RF Design", fb)
		}
	} else if s.HighPA {
		v.errorf(field("highPA"), "High PA not supported in the RF Design")
	}

	if s.TxPower != "" {
		e, err := r.Entry(freq, false, s.TxPower)
		switch {
		case err != nil:
			v.errorf(field("txPower"), "%v", err)
		case e.RequiresVddrHH:
			v.warnf(field("txPower"), "%s dBm requires CCFG_FORCE_VDDR_HH = 1", s.TxPower)
		}
	}
	if s.TxPowerHi != "" && s.HighPA && c.IsHighPaSupported(freq) {
		if _, err := r.Entry(freq, true, s.TxPowerHi); err != nil {
			v.errorf(field("txPowerHi"), "%v", err)
		}
	}
}

// validateSymbols reports settings sharing a name or an exported symbol
func (c *Config) validateSymbols(v *validator) {
	names := make(map[string]bool)
	owners := make(map[string]string)
	for _, s := range c.Settings {
		if names[s.Name] {
			v.errorf("settings."+s.Name+".name", "duplicate setting name %s", s.Name)
		}
		names[s.Name] = true

		for _, sym := range []string{s.Symbols.TxPower, s.Symbols.TxPowerSize, s.Symbols.Overrides} {
			if sym == "" {
				continue
			}
			if o, ok := owners[sym]; ok && o != s.Name {
				v.errorf("settings."+s.Name+".symbols", "symbol %s already used by setting %s", sym, o)
				continue
			}
			owners[sym] = s.Name
		}
	}
}
