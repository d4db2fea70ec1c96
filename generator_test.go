package rfgen

import (
	"errors"
	"strings"
	"testing"

	log "github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/akhenakh/rfgen/devinfo"
	"github.com/akhenakh/rfgen/metrics"
	"github.com/akhenakh/rfgen/patable"
	"github.com/akhenakh/rfgen/rfdesign"
)

func newGenerator(t *testing.T) *Generator {
	db, err := devinfo.Load(devinfo.DirSource("devices/cc1352p"))
	require.NoError(t, err)
	cfg, err := rfdesign.Load("configs/launchxl-cc1352p1.yml")
	require.NoError(t, err)

	g, err := New("rfgen test", log.NewNopLogger(), db, cfg)
	require.NoError(t, err)
	return g
}

func TestRender(t *testing.T) {
	g := newGenerator(t)

	renders := testutil.ToFloat64(metrics.RenderCounter)

	res, err := g.Render()
	require.NoError(t, err)
	require.Len(t, res.Digest, 64)
	require.Equal(t, renders+1, testutil.ToFloat64(metrics.RenderCounter))

	require.Contains(t, res.Source, "uint32_t RF_pOverrides[] =")
	require.Contains(t, res.Source, "uint32_t RF_pOverridesTxStd[] =")
	require.Contains(t, res.Source, "TX_STD_POWER_OVERRIDE(0x743F)")
	require.Contains(t, res.Source, "TX20_POWER_OVERRIDE(0x")
	require.Contains(t, res.Source, "uint32_t RF_ble_pOverridesCommon[] =")
	require.Contains(t, res.Source, "uint32_t RF_ble_pOverrides1Mbps[] =")
	// coexistence is disabled in the design
	require.NotContains(t, res.Source, "override_ble5_coex.json")
	require.Contains(t, res.Source, "uint32_t RF_ieee_pOverrides[] =")
	require.Contains(t, res.Source, "RF_TxPowerTable_Entry txPowerTable_868_pa13_20[")

	require.Contains(t, res.Header, "#define RF_PROP_txPowerTable txPowerTable_868_pa13_20\n")
	require.Contains(t, res.Header, "#define SUPPORT_FREQBAND_868\n")
	require.Contains(t, res.Header, "#define SUPPORT_FREQBAND_2400\n")
	require.Contains(t, res.Header, "#define FRONTEND_SUB1G_DIFF_RF\n")
	require.Contains(t, res.Header, "CC1352P1F3RGZ")

	// identical design, identical text
	again, err := g.Render()
	require.NoError(t, err)
	require.Equal(t, res.Digest, again.Digest)
	require.Equal(t, res.Source, again.Source)
	require.Equal(t, res.Header, again.Header)
}

func TestRenderSetting(t *testing.T) {
	g := newGenerator(t)

	res, err := g.RenderSetting("ble")
	require.NoError(t, err)
	require.Contains(t, res.Source, "RF_ble_pOverrides")
	require.NotContains(t, res.Source, "RF_pOverrides[]")
	require.NotContains(t, res.Source, "RF_ieee_pOverrides")

	// a single active export has no combined table
	require.NotContains(t, res.Header, "_pa13_20")

	full, err := g.Render()
	require.NoError(t, err)
	require.NotEqual(t, full.Digest, res.Digest)

	_, err = g.RenderSetting("nope")
	require.True(t, errors.Is(err, ErrUnknownSetting))
}

func TestRenderInvalid(t *testing.T) {
	db, err := devinfo.Load(devinfo.DirSource("devices/cc1352p"))
	require.NoError(t, err)
	cfg, err := rfdesign.Parse([]byte(`
rfDesign: LAUNCHXL-CC1352P1
settings:
  - {name: p, group: prop, phyType: nope}
`))
	require.NoError(t, err)

	g, err := New("rfgen test", log.NewNopLogger(), db, cfg)
	require.NoError(t, err)

	require.True(t, rfdesign.HasErrors(g.Validate()))

	errs := testutil.ToFloat64(metrics.ErrorCounter)
	_, err = g.Render()
	require.True(t, errors.Is(err, ErrInvalidDesign))
	require.Equal(t, errs+1, testutil.ToFloat64(metrics.ErrorCounter))

	cfg, err = rfdesign.Parse([]byte(`rfDesign: LAUNCHXL-CC2652R1`))
	require.NoError(t, err)
	_, err = New("rfgen test", log.NewNopLogger(), db, cfg)
	require.True(t, errors.Is(err, devinfo.ErrUnknownDesign))
}

func TestOverrides(t *testing.T) {
	g := newGenerator(t)
	key := devinfo.PhyKey{Group: devinfo.Prop, Type: "2gfsk50kbps"}

	resolves := testutil.ToFloat64(metrics.ResolveCounter.WithLabelValues(metrics.KindOverrides))

	tbl, err := g.Overrides(OverrideRequest{Key: key})
	require.NoError(t, err)
	require.Len(t, tbl.Structs, 1)
	require.Equal(t, "pRegOverride", tbl.Structs[0].PtrName)
	require.Equal(t, resolves+1, testutil.ToFloat64(metrics.ResolveCounter.WithLabelValues(metrics.KindOverrides)))

	tbl, err = g.Overrides(OverrideRequest{Key: key, HighPA: true})
	require.NoError(t, err)
	require.Equal(t, []string{"RF_pOverrides", "RF_pOverridesTxStd", "RF_pOverridesTx20"}, tbl.StructNames("RF_pOverrides"))

	// the 14 dBm entry brings its own fragment
	tbl, err = g.Overrides(OverrideRequest{Key: key, TxPower: "14"})
	require.NoError(t, err)
	var files []string
	for _, f := range tbl.Structs[0].Fragments {
		files = append(files, f.File)
	}
	require.Contains(t, files, "override_prop_txpower_14dbm.json")

	_, err = g.Overrides(OverrideRequest{Key: key, TxPower: "42"})
	require.True(t, errors.Is(err, patable.ErrNoEntry))

	_, err = g.Overrides(OverrideRequest{Key: devinfo.PhyKey{Group: devinfo.Prop, Type: "nope"}})
	require.True(t, errors.Is(err, devinfo.ErrUnknownPhy))

	// outside every band of the design, no PA data
	tbl, err = g.Overrides(OverrideRequest{Key: devinfo.PhyKey{Group: devinfo.Prop, Type: "slr5kbps2gfsk433"}})
	require.NoError(t, err)
	require.NotEmpty(t, tbl.Structs)
}

func TestPaTable(t *testing.T) {
	g := newGenerator(t)

	pt, err := g.PaTable(868, false, false)
	require.NoError(t, err)
	require.Equal(t, "txPowerTable_868_pa13", pt.Info.Symbol)
	require.Len(t, pt.Rows, len(pt.Entries))
	require.Equal(t, -10, pt.Rows[0].Dbm)

	pt, err = g.PaTable(868, true, true)
	require.NoError(t, err)
	require.True(t, pt.Combined)
	require.Equal(t, "txPowerTable_868_pa13_20", pt.Info.Symbol)
	for i := 1; i < len(pt.Rows); i++ {
		require.True(t, pt.Rows[i].Dbm > pt.Rows[i-1].Dbm)
	}

	pt, err = g.PaTable(2440, false, false)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(pt.Info.Symbol, "txPowerTable_2400_pa"))

	_, err = g.PaTable(950, false, false)
	require.True(t, errors.Is(err, patable.ErrNoBand))
}
