package override

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akhenakh/rfgen/devinfo"
)

type memSource map[string]string

func (m memSource) Find(name string) ([]byte, error) {
	s, ok := m[name]
	if !ok {
		return nil, errors.New("not found " + name)
	}
	return []byte(s), nil
}

func loadDB(t *testing.T) *devinfo.Database {
	db, err := devinfo.Load(devinfo.DirSource("../devices/cc1352p"))
	require.NoError(t, err)
	return db
}

func phy(t *testing.T, db *devinfo.Database, group devinfo.PhyGroup, typ string) *devinfo.PhySetting {
	p, err := db.Phy(devinfo.PhyKey{Group: group, Type: typ})
	require.NoError(t, err)
	return p
}

func names(t *Table) []string {
	var res []string
	for _, s := range t.Structs {
		res = append(res, s.PtrName)
	}
	return res
}

func files(s *Struct) []string {
	var res []string
	for _, f := range s.Fragments {
		res = append(res, f.File)
	}
	return res
}

func TestResolveStandardPA(t *testing.T) {
	db := loadDB(t)
	p := phy(t, db, devinfo.Prop, "2gfsk50kbps")

	tbl, err := Resolve(p, db.Fragments(devinfo.Prop), Options{
		Data: Data{TxPower: 0x743F, LoDivider: 5},
	})
	require.NoError(t, err)

	// TX power pointers are dropped without high PA
	require.Equal(t, []string{"pRegOverride"}, names(tbl))
	s := tbl.Structs[0]
	require.Equal(t, "CMD_PROP_RADIO_DIV_SETUP_PA", s.CmdName)
	require.Equal(t, []string{
		"override_prop_common.json",
		"override_tc706.json",
		"override_prop_non_coex.json",
	}, files(s))

	// single element given as an object
	require.Len(t, s.Fragments[1].Elements, 1)
	require.Equal(t, "HW_REG_OVERRIDE(0x6098,0x000A)", s.Fragments[1].Elements[0].Text)

	common := s.Fragments[0].Elements
	require.Equal(t, "(uint32_t)0x02010403", common[2].Text)
	require.Equal(t, Literal, common[2].Kind)
	require.Equal(t, "(uint32_t)0x11310703", common[6].Text)
	require.Equal(t, 9, tbl.StackOffset)
	require.Zero(t, tbl.Unknown)
}

func TestResolveHighPA(t *testing.T) {
	db := loadDB(t)
	p := phy(t, db, devinfo.Prop, "2gfsk50kbps")

	tbl, err := Resolve(p, db.Fragments(devinfo.Prop), Options{
		HighPA:      true,
		CoexEnabled: true,
		Data:        Data{TxPower: 0x743F, TxPowerHi: 0x3D5F0C, LoDivider: 5},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"pRegOverride", "pRegOverrideTxStd", "pRegOverrideTx20"}, names(tbl))

	require.Contains(t, files(tbl.Structs[0]), "override_prop_coex.json")
	require.NotContains(t, files(tbl.Structs[0]), "override_prop_non_coex.json")

	std := tbl.Structs[1].Fragments[0].Elements
	require.Equal(t, "TX_STD_POWER_OVERRIDE(0x743F)", std[0].Text)
	require.Equal(t, "(uint32_t)0x11310703", std[1].Text)

	// the empty fragment is skipped
	require.Equal(t, []string{"override_tx20_placeholder.json"}, files(tbl.Structs[2]))
	hi := tbl.Structs[2].Fragments[0].Elements
	require.Equal(t, "TX20_POWER_OVERRIDE(0x003D5F0C)", hi[0].Text)
	require.Equal(t, "(uint32_t)0x11C10703", hi[1].Text)

	require.Equal(t, []string{"RF_pOverrides", "RF_pOverridesTxStd", "RF_pOverridesTx20"}, tbl.StructNames("RF_pOverrides"))
}

func TestResolveDeterministic(t *testing.T) {
	db := loadDB(t)
	p := phy(t, db, devinfo.BLE, "bt5le1m")
	opts := Options{HighPA: true, Data: Data{TxPower: 0x941E, TxPowerHi: 0x3F3FDF}}

	t1, err := Resolve(p, db.Fragments(devinfo.BLE), opts)
	require.NoError(t, err)
	t2, err := Resolve(p, db.Fragments(devinfo.BLE), opts)
	require.NoError(t, err)
	require.Equal(t, t1, t2)
}

func TestResolvePatch(t *testing.T) {
	db := loadDB(t)
	p := phy(t, db, devinfo.BLE, "bt5le1m")

	tbl, err := Resolve(p, db.Fragments(devinfo.BLE), Options{CoexEnabled: true})
	require.NoError(t, err)
	require.Equal(t, []string{"pRegOverrideCommon", "pRegOverride1Mbps"}, names(tbl))
	require.Equal(t, []string{
		"override_ble5_setup_override_common.json",
		"override_ble5_coex.json",
	}, files(tbl.Structs[0]))

	tbl, err = Resolve(p, db.Fragments(devinfo.BLE), Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"override_ble5_setup_override_common.json"}, files(tbl.Structs[0]))
}

func TestResolveStringBlock(t *testing.T) {
	db := loadDB(t)
	p := phy(t, db, devinfo.Prop, "slr5kbps2gfsk433")

	tbl, err := Resolve(p, db.Fragments(devinfo.Prop), Options{Data: Data{LoDivider: 10}})
	require.NoError(t, err)
	require.Equal(t, []string{"pRegOverride"}, names(tbl))
	els := tbl.Structs[0].Fragments[0].Elements
	require.Equal(t, "ADI_REG_OVERRIDE(0,12,0xF8)", els[2].Text)
	require.Equal(t, "HPOSC_OVERRIDE(0x0)", els[3].Text)
	require.Equal(t, "(uint32_t)0x11310703", els[4].Text)
}

func TestTxPowerFile(t *testing.T) {
	frags := memSource{
		"a.json":             `{"elements": {"type": "ELEMENT", "comment": "a", "value": "0x1"}}`,
		"tx.json":            `{"elements": {"type": "TXSTDPA", "comment": "tx"}}`,
		"txpower_14dbm.json": `{"elements": {"type": "ELEMENT", "comment": "14", "value": "0x14"}}`,
	}
	cmds := []Command{
		{Name: "CMD_A", Entries: []Entry{
			{PtrName: "pRegOverride", Files: []string{"a.json"}},
			{PtrName: "pRegOverrideTxStd", Files: []string{"tx.json"}, HighPAOnly: true},
		}},
	}

	tbl, err := ResolveCommands(cmds, frags, Options{HighPA: true, TxPowerFile: "txpower_14dbm.json"})
	require.NoError(t, err)
	require.Equal(t, []string{"a.json", "txpower_14dbm.json"}, files(tbl.Structs[0]))
	// 14 dBm fragments only apply to the default struct
	require.Equal(t, []string{"tx.json"}, files(tbl.Structs[1]))
}

func TestDedupe(t *testing.T) {
	frags := memSource{
		"a.json": `{"elements": [{"type": "ELEMENT", "comment": "a", "value": "0xA"}]}`,
		"b.json": `{"elements": [{"type": "ELEMENT", "comment": "b", "value": "0xB"}]}`,
		"c.json": `{"elements": [{"type": "ELEMENT", "comment": "c", "value": "0xC"}]}`,
	}
	cmds := []Command{
		{Name: "CMD_1", Entries: []Entry{{PtrName: "pRegOverride", Files: []string{"a.json"}}}},
		{Name: "CMD_2", Entries: []Entry{{PtrName: "pRegOverrideExtra", Files: []string{"b.json"}}}},
		{Name: "CMD_3", Entries: []Entry{{PtrName: "pRegOverride", Files: []string{"c.json", "c.json"}}}},
	}

	tbl, err := ResolveCommands(cmds, frags, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"pRegOverride", "pRegOverrideExtra"}, names(tbl))
	require.Equal(t, "CMD_3", tbl.Structs[0].CmdName)
	require.Equal(t, []string{"c.json"}, files(tbl.Structs[0]))
}

func TestUnknownElement(t *testing.T) {
	frags := memSource{
		"a.json": `{"elements": [{"type": "SW_REG_OVERRIDE", "comment": "sw", "value": "0x1"}]}`,
	}
	cmds := []Command{{Name: "CMD", Entries: []Entry{{PtrName: "pRegOverride", Files: []string{"a.json"}}}}}

	tbl, err := ResolveCommands(cmds, frags, Options{})
	require.NoError(t, err)
	e := tbl.Structs[0].Fragments[0].Elements[0]
	require.Equal(t, Unknown, e.Kind)
	require.Equal(t, "//** ERROR: Element type not implemented: SW_REG_OVERRIDE", e.Text)
	require.Equal(t, 1, tbl.Unknown)
}

func TestMissingFragment(t *testing.T) {
	cmds := []Command{{Name: "CMD", Entries: []Entry{{PtrName: "pRegOverride", Files: []string{"nope.json"}}}}}
	_, err := ResolveCommands(cmds, memSource{}, Options{})
	require.Error(t, err)
}

func TestBuilder(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add(json.RawMessage(`{"name": "CMD_FS"}`)))
	require.NoError(t, b.Add(json.RawMessage(`{
		"name": "CMD_SETUP",
		"overrideField": {"name": "pRegOverride", "block": "a.json"},
		"overridePatch": {"block": ["a.json", "b.json"]}
	}`)))
	require.NoError(t, b.Add(json.RawMessage(`{
		"name": "CMD_SETUP_PA",
		"overrideField": [
			{"name": "pRegOverride", "block": ["x.json"]},
			{"name": "pRegOverrideTx20", "block": "tx20.json"},
			{"name": "pRegOverrideEmpty", "block": []}
		],
		"overridePatch": [{"block": ["y.json"]}]
	}`)))

	cmds, err := b.Build()
	require.NoError(t, err)
	require.Len(t, cmds, 2)

	require.Equal(t, Command{Name: "CMD_SETUP", Entries: []Entry{
		{PtrName: "pRegOverride", Files: []string{"a.json", "b.json"}},
	}}, cmds[0])

	require.Equal(t, Command{Name: "CMD_SETUP_PA", Entries: []Entry{
		{PtrName: "pRegOverride", Files: []string{"y.json"}},
		{PtrName: "pRegOverrideTx20", Files: []string{"tx20.json"}, HighPAOnly: true},
	}}, cmds[1])
}

func TestBuilderErrors(t *testing.T) {
	b := NewBuilder()
	require.Error(t, b.Add(json.RawMessage(`{`)))

	require.NoError(t, b.Add(json.RawMessage(`{"name": "CMD", "overrideField": 12}`)))
	_, err := b.Build()
	require.True(t, errors.Is(err, ErrUnexpectedData))

	b = NewBuilder()
	require.NoError(t, b.Add(json.RawMessage(`{"name": "CMD", "overrideField": {"name": "p", "block": [1]}}`)))
	_, err = b.Build()
	require.True(t, errors.Is(err, ErrUnexpectedData))
}

func TestAnaDiv(t *testing.T) {
	tests := []struct {
		loDivider, frontEnd int
		tx20                bool
		want                uint32
	}{
		{5, 0, false, 0x11310703},
		{5, 0, true, 0x11C10703},
		{0, 0, true, 0x01C20703},
		{0, 1, false, 0x05120703},
		{0, 2, false, 0x05220703},
		{2, 0, false, 0x01320703},
		{4, 0, true, 0xF1C10703},
		{30, 3, false, 0x11110703},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, AnaDiv(tt.loDivider, tt.frontEnd, tt.tx20), "lo %d fe %d tx20 %v", tt.loDivider, tt.frontEnd, tt.tx20)
	}
}
