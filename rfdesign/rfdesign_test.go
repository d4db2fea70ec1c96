package rfdesign

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akhenakh/rfgen/devinfo"
	"github.com/akhenakh/rfgen/patable"
)

func loadDB(t *testing.T) *devinfo.Database {
	db, err := devinfo.Load(devinfo.DirSource("../devices/cc1352p"))
	require.NoError(t, err)
	return db
}

func parse(t *testing.T, db *devinfo.Database, s string) *Config {
	c, err := Parse([]byte(s))
	require.NoError(t, err)
	require.NoError(t, c.ApplyDefaults(db))
	return c
}

func fields(issues []Issue) []string {
	var res []string
	for _, i := range issues {
		res = append(res, i.Field)
	}
	return res
}

func TestLoadSample(t *testing.T) {
	db := loadDB(t)
	c, err := Load("../configs/launchxl-cc1352p1.yml")
	require.NoError(t, err)
	require.NoError(t, c.ApplyDefaults(db))

	require.Equal(t, "CC1352P1F3RGZ", c.Device)
	require.Len(t, c.Settings, 3)
	require.Equal(t, "XD", c.FeSub1g)
	require.Equal(t, "LAUNCHXL-CC1352P-HIGH-PA", c.TargetName())

	issues := c.Validate(db)
	require.Empty(t, issues)

	require.Equal(t, ExportMethods{Total: 2, Separate: 1, Combined: 1}, c.ExportMethods())
	require.Equal(t, Symbols{
		TxPower:     "RF_BLE_txPowerTable",
		TxPowerSize: "RF_BLE_TX_POWER_TABLE_SIZE",
		Overrides:   "RF_ble_pOverrides",
	}, c.Settings[1].Symbols)
}

func TestDefaults(t *testing.T) {
	db := loadDB(t)

	c := parse(t, db, `
rfDesign: LAUNCHXL-CC1352P1
settings:
  - name: a
    group: prop
    phyType: 2gfsk50kbps
  - name: b
    group: prop
    phyType: 2gfsk50kbps
`)
	require.Equal(t, Band868, c.FbSub1g)
	require.Equal(t, Band2400, c.Fb24g)
	require.Equal(t, PaSub1g, c.Pa20)
	require.Equal(t, patable.ExportActive, c.Settings[0].PaExport)
	require.Equal(t, "RF_pOverrides", c.Settings[0].Symbols.Overrides)
	require.Equal(t, "RF_pOverrides_b", c.Settings[1].Symbols.Overrides)
	require.Equal(t, "RF_PROP_txPowerTable_b", c.Settings[1].Symbols.TxPower)

	// 433 MHz design with the high PA at 2.4 GHz
	c = parse(t, db, `rfDesign: LAUNCHXL-CC1352P-4`)
	require.Equal(t, Band433, c.FbSub1g)
	require.Equal(t, Band2400, c.Fb24g)
	require.Equal(t, Pa24g, c.Pa20)
	require.Equal(t, "LAUNCHXL-CC1352P-4-HIGH-PA", c.TargetName())

	// first design of the database
	c = parse(t, db, `settings: []`)
	require.Equal(t, "LAUNCHXL-CC1352P1", c.RfDesign)

	c, err := Parse([]byte(`rfDesign: LAUNCHXL-CC2652R1`))
	require.NoError(t, err)
	require.Error(t, c.ApplyDefaults(db))

	_, err = Parse([]byte("settings: {"))
	require.Error(t, err)
}

func TestHighPaSupport(t *testing.T) {
	c := &Config{FbSub1g: Band868, Fb24g: Band2400, Pa20: PaSub1g}
	require.True(t, c.IsHighPaSupported(868))
	require.False(t, c.IsHighPaSupported(2440))

	c.Pa20 = Pa24g
	require.False(t, c.IsHighPaSupported(868))
	require.True(t, c.IsHighPaSupported(2440))

	c.Fb24g = BandNone
	require.False(t, c.IsHighPaSupported(2440))

	require.Equal(t, PaNone, (&Config{}).HighPaAssociation())
}

func TestFreqBandSelected(t *testing.T) {
	c := &Config{FbSub1g: Band433, Fb24g: BandNone, FeSub1g: "XS", Fe24g: "ID"}
	require.True(t, c.IsFreqBandSelected(431))
	require.False(t, c.IsFreqBandSelected(770))
	require.False(t, c.IsFreqBandSelected(2400))
	require.False(t, c.IsFreqBandSelected(1))
	require.Equal(t, "XS", c.FrontEnd(433))
	require.Equal(t, "ID", c.FrontEnd(2400))
}

func TestValidate(t *testing.T) {
	db := loadDB(t)

	tests := []struct {
		name   string
		design string
		want   []string
	}{
		{
			"board mismatch",
			`
board: LAUNCHXL-CC1352P-4
rfDesign: LAUNCHXL-CC1352P1
`,
			[]string{"rfDesign"},
		},
		{
			"board and design name the same design",
			`
board: LAUNCHXL-CC1352P1
rfDesign: LAUNCHXL-CC1352P
`,
			nil,
		},
		{
			"433 band not selected",
			`
rfDesign: LAUNCHXL-CC1352P1
settings:
  - {name: slr, group: prop, phyType: slr5kbps2gfsk433}
`,
			[]string{"settings.slr.freqBand", "fbSub1g"},
		},
		{
			"2.4 GHz band not selected",
			`
rfDesign: LAUNCHXL-CC1352P1
fb24g: none
settings:
  - {name: ble, group: ble, phyType: bt5le1m}
`,
			[]string{"settings.ble.frequency", "fb24g"},
		},
		{
			"high PA on the wrong band",
			`
rfDesign: LAUNCHXL-CC1352P1
settings:
  - {name: ble, group: ble, phyType: bt5le1m, highPA: true}
`,
			[]string{"pa20", "settings.ble.highPA"},
		},
		{
			"high PA not assigned",
			`
rfDesign: LAUNCHXL-CC1352P1
pa20: none
settings:
  - {name: p, group: prop, phyType: 2gfsk50kbps, highPA: true}
`,
			[]string{"settings.p.highPA"},
		},
		{
			"combined without high PA",
			`
rfDesign: LAUNCHXL-CC1352P1
pa20: none
settings:
  - {name: p, group: prop, phyType: 2gfsk50kbps, paExport: combined}
`,
			[]string{"pa20", "settings.p.paExport"},
		},
		{
			"high PA band excluded",
			`
rfDesign: LAUNCHXL-CC1352P-4
fb24g: none
pa20: fb24g
settings:
  - {name: ble, group: ble, phyType: bt5le1m}
`,
			[]string{"pa20"},
		},
		{
			"unknown PHY",
			`
rfDesign: LAUNCHXL-CC1352P1
settings:
  - {name: p, group: prop, phyType: nope}
`,
			[]string{"settings.p.phyType"},
		},
		{
			"frequency out of band",
			`
rfDesign: LAUNCHXL-CC1352P1
settings:
  - {name: p, group: prop, phyType: 2gfsk50kbps, frequency: 950}
`,
			[]string{"settings.p.frequency"},
		},
		{
			"TX power",
			`
rfDesign: LAUNCHXL-CC1352P1
settings:
  - {name: p, group: prop, phyType: 2gfsk50kbps, txPower: "42"}
  - {name: q, group: prop, phyType: 2gfsk50kbps, txPower: "14"}
  - {name: r, group: prop, phyType: 2gfsk50kbps, highPA: true, txPowerHi: "5"}
`,
			[]string{"settings.p.txPower", "settings.q.txPower", "settings.r.txPowerHi"},
		},
		{
			"duplicates",
			`
rfDesign: LAUNCHXL-CC1352P1
customOverrides:
  - {path: "", macro: MY_OVERRIDE}
settings:
  - {name: p, group: prop, phyType: 2gfsk50kbps}
  - {name: ble, group: ble, phyType: bt5le1m, symbols: {overrides: RF_pOverrides}}
  - {name: p, group: prop, phyType: 2gfsk50kbps}
  - {name: 2x, group: prop, phyType: 2gfsk50kbps}
`,
			[]string{
				"customOverrides.0",
				"settings.2x.name",
				"settings.ble.symbols",
				"settings.p.name",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := parse(t, db, tt.design)
			require.Equal(t, tt.want, fields(c.Validate(db)))
		})
	}
}

func TestValidateSeverity(t *testing.T) {
	db := loadDB(t)
	c := parse(t, db, `
rfDesign: LAUNCHXL-CC1352P1
settings:
  - {name: q, group: prop, phyType: 2gfsk50kbps, txPower: "14"}
`)
	issues := c.Validate(db)
	require.Len(t, issues, 1)
	require.Equal(t, SeverityWarning, issues[0].Severity)
	require.False(t, HasErrors(issues))
	require.Equal(t, "warning: settings.q.txPower: 14 dBm requires CCFG_FORCE_VDDR_HH = 1", issues[0].String())

	s, ok := c.Setting("q")
	require.True(t, ok)
	require.Equal(t, devinfo.PhyKey{Group: devinfo.Prop, Type: "2gfsk50kbps"}, s.Key())
	_, ok = c.Setting("nope")
	require.False(t, ok)
}
