package devinfo

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// PhyGroup is the protocol family of a PHY setting
type PhyGroup string

const (
	Prop    PhyGroup = "prop"
	BLE     PhyGroup = "ble"
	IEEE154 PhyGroup = "ieee_15_4"
)

var (
	ErrUnsupportedDevice = errors.New("device is not supported")
	ErrNoTargets         = errors.New("no targets found")
	ErrUnknownPhy        = errors.New("unknown PHY setting")
	ErrUnknownDesign     = errors.New("unknown RF design")
)

// devNames maps SysConfig device names to database names
var devNames = map[string]string{
	"CC1352R1F3RGZ": "cc1352r",
	"CC1352P1F3RGZ": "cc1352p",
	"CC1312R1F3RGZ": "cc1312r",
	"CC2652R1FRGZ":  "cc2652r",
	"CC2642R1FRGZ":  "cc2642r",
	"CC2652RB":      "cc2652rb",
	"CC2652PRGZ":    "cc2652p",
}

// launchPads maps official LaunchPad names to the RF design names of the database,
// when they differ
var launchPads = map[string]string{
	"LAUNCHXL-CC1352P1":  "LAUNCHXL-CC1352P",
	"LAUNCHXL-CC1352P-2": "LAUNCHXL-CC1352P-2_4GHZ",
	"LAUNCHXL-CC2652RB":  "LAUNCHXL-CC26X2RB",
}

// DeviceName returns the database name of a SysConfig device name
func DeviceName(sysCfgName string) (string, error) {
	name, ok := devNames[sysCfgName]
	if !ok {
		return "", fmt.Errorf("%s: %w", sysCfgName, ErrUnsupportedDevice)
	}
	return name, nil
}

// DesignName returns the internal RF design name for a board name
func DesignName(board string) string {
	if name, ok := launchPads[board]; ok {
		return name
	}
	return board
}

// BoardName is the reverse of DesignName
func BoardName(design string) string {
	for board, name := range launchPads {
		if name == design {
			return board
		}
	}
	return design
}

func ParsePhyGroup(s string) (PhyGroup, error) {
	switch PhyGroup(s) {
	case Prop, BLE, IEEE154:
		return PhyGroup(s), nil
	}
	return "", fmt.Errorf("invalid PHY group %q", s)
}

// PhyKey identifies a PHY setting in the database
type PhyKey struct {
	Group PhyGroup
	Type  string
}

func (k PhyKey) String() string {
	return string(k.Group) + "/" + k.Type
}

// PhySetting is one radio configuration as loaded from a setting file
type PhySetting struct {
	Key         PhyKey
	Description string
	File        string

	// Frequency in MHz
	Frequency    float64
	LoDivider    int
	FrontEndMode int

	// default TX power selections in dBm, as written in the PA tables
	TxPower   string
	TxPowerHi string

	// RF commands, kept raw for the override resolver
	Commands []json.RawMessage
}

// FreqBand returns the nominal band of the setting: 433, 868 or 2400
func (p *PhySetting) FreqBand() int {
	return FreqBand(p.Frequency)
}

// FreqBand returns the nominal band of a frequency in MHz
func FreqBand(freq float64) int {
	switch {
	case freq >= 2000:
		return 2400
	case freq < 600:
		return 433
	}
	return 868
}

// PaSetting is one row of a PA table
type PaSetting struct {
	// dBm as written in the database
	Text string
	Dbm  float64

	Value       uint32
	TxHighPa    uint32
	HasTxHighPa bool

	// the entry needs CCFG_FORCE_VDDR_HH = 1
	RequiresVddrHH bool

	// override fragment applied when this power level is selected
	OverrideBlock string
}

// Raw returns the register value to program for this entry
func (s PaSetting) Raw() uint32 {
	if s.HasTxHighPa {
		return s.TxHighPa
	}
	return s.Value
}

// FrequencyRange is a closed range in MHz with its PA table, highest power first
type FrequencyRange struct {
	Min, Max   int
	PaSettings []PaSetting
}

type Target struct {
	Name        string
	RfDesign    string
	FrontEnd    string
	Description string
	HighPA      bool
	Ranges      []FrequencyRange
}

// Design is a base target with its optional high PA variant
type Design struct {
	Name   string
	Target *Target
	HighPA *Target
}

// Database is a loaded device database, read only once loaded
type Database struct {
	Name          string
	Version       string
	HighPaSupport bool

	src          Source
	phys         map[PhyKey]*PhySetting
	groups       map[PhyGroup][]*PhySetting
	overridePath map[PhyGroup]string
	designs      map[string]*Design
	designOrder  []*Design

	mu        sync.RWMutex
	fragments map[string][]byte
}

// Phy returns the setting for key
func (db *Database) Phy(key PhyKey) (*PhySetting, error) {
	p, ok := db.phys[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrUnknownPhy)
	}
	return p, nil
}

// Phys returns the settings of a group in database order
func (db *Database) Phys(group PhyGroup) []*PhySetting {
	return db.groups[group]
}

// Groups returns the PHY groups present in the database
func (db *Database) Groups() []PhyGroup {
	res := make([]PhyGroup, 0, len(db.groups))
	for g := range db.groups {
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Designs returns the base RF designs in database order
func (db *Database) Designs() []*Design {
	return db.designOrder
}

// Design returns a design by its internal or board name
func (db *Database) Design(name string) (*Design, error) {
	d, ok := db.designs[DesignName(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownDesign)
	}
	return d, nil
}

// OverridePath returns the directory holding the override fragments of group
func (db *Database) OverridePath(group PhyGroup) string {
	return db.overridePath[group]
}

// Fragments returns a Source rooted at the override directory of group
func (db *Database) Fragments(group PhyGroup) Source {
	return fragmentSource{db: db, path: db.overridePath[group]}
}

func (db *Database) fragment(name string) ([]byte, error) {
	db.mu.RLock()
	b, ok := db.fragments[name]
	db.mu.RUnlock()
	if ok {
		return b, nil
	}

	b, err := db.src.Find(name)
	if err != nil {
		return nil, fmt.Errorf("can't read override fragment %s: %w", name, err)
	}

	db.mu.Lock()
	db.fragments[name] = b
	db.mu.Unlock()
	return b, nil
}

type fragmentSource struct {
	db   *Database
	path string
}

func (f fragmentSource) Find(name string) ([]byte, error) {
	return f.db.fragment(strings.TrimSuffix(f.path, "/") + "/" + name)
}
