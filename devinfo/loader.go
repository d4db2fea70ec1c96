package devinfo

import (
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
)

const deviceFile = "device.json"

type deviceDesc struct {
	Name          string         `json:"name"`
	Version       string         `json:"version"`
	HighPaSupport bool           `json:"highPaSupport"`
	PhyGroups     []phyGroupDesc `json:"phyGroups"`
	Targets       []string       `json:"targets"`
	PaSettings    string         `json:"paSettings"`
}

type phyGroupDesc struct {
	Group    string        `json:"group"`
	Path     string        `json:"path"`
	Settings []settingDesc `json:"settings"`
}

type settingDesc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	File        string `json:"file"`
}

type settingFile struct {
	Frequency    float64           `json:"frequency"`
	LoDivider    int               `json:"loDivider"`
	FrontEndMode int               `json:"frontEndMode"`
	TxPower      string            `json:"txPower"`
	TxPowerHi    string            `json:"txPowerHi"`
	Commands     []json.RawMessage `json:"commands"`
}

type targetFile struct {
	Name        string `json:"name"`
	RfDesign    string `json:"rfDesign"`
	FrontEnd    string `json:"frontEnd"`
	Description string `json:"description"`
}

type paSettingsFile struct {
	RfDesigns []struct {
		Name   string `json:"name"`
		Ranges []struct {
			Min        int          `json:"min"`
			Max        int          `json:"max"`
			PaSettings []paEntryRaw `json:"paSettings"`
		} `json:"frequencyRanges"`
	} `json:"rfDesigns"`
}

type paEntryRaw struct {
	Dbm           string `json:"dbm"`
	Value         string `json:"value"`
	TxHighPa      string `json:"txHighPa"`
	Option        string `json:"option"`
	OverrideBlock string `json:"overrideBlock"`
}

// Load reads a complete device database from src
func Load(src Source) (*Database, error) {
	var desc deviceDesc
	if err := readJSON(src, deviceFile, &desc); err != nil {
		return nil, err
	}

	if !isKnownDevice(desc.Name) {
		return nil, fmt.Errorf("%s: %w", desc.Name, ErrUnsupportedDevice)
	}

	db := &Database{
		Name:          desc.Name,
		Version:       desc.Version,
		HighPaSupport: desc.HighPaSupport,
		src:           src,
		phys:          make(map[PhyKey]*PhySetting),
		groups:        make(map[PhyGroup][]*PhySetting),
		overridePath:  make(map[PhyGroup]string),
		designs:       make(map[string]*Design),
		fragments:     make(map[string][]byte),
	}

	for _, pg := range desc.PhyGroups {
		group, err := ParsePhyGroup(pg.Group)
		if err != nil {
			return nil, err
		}
		db.overridePath[group] = path.Join(pg.Path, "overrides")

		for _, sd := range pg.Settings {
			var sf settingFile
			if err := readJSON(src, path.Join(pg.Path, sd.File), &sf); err != nil {
				return nil, err
			}
			p := &PhySetting{
				Key:          PhyKey{Group: group, Type: sd.Name},
				Description:  sd.Description,
				File:         sd.File,
				Frequency:    sf.Frequency,
				LoDivider:    sf.LoDivider,
				FrontEndMode: sf.FrontEndMode,
				TxPower:      sf.TxPower,
				TxPowerHi:    sf.TxPowerHi,
				Commands:     sf.Commands,
			}
			if _, ok := db.phys[p.Key]; ok {
				return nil, fmt.Errorf("duplicate PHY setting %s", p.Key)
			}
			db.phys[p.Key] = p
			db.groups[group] = append(db.groups[group], p)
		}
	}

	if len(desc.Targets) == 0 {
		return nil, fmt.Errorf("%s: %w", desc.Name, ErrNoTargets)
	}

	var paf paSettingsFile
	if err := readJSON(src, desc.PaSettings, &paf); err != nil {
		return nil, err
	}

	var highPaTargets []*Target
	for _, tf := range desc.Targets {
		var td targetFile
		if err := readJSON(src, tf, &td); err != nil {
			return nil, err
		}

		t := &Target{
			Name:        td.Name,
			RfDesign:    td.RfDesign,
			FrontEnd:    td.FrontEnd,
			Description: td.Description,
			HighPA:      strings.Contains(td.Name, "HIGH-PA"),
		}
		onlySub1G := strings.Contains(td.Name, "CC1312R1")

		found := false
		for _, rd := range paf.RfDesigns {
			if rd.Name != td.RfDesign {
				continue
			}
			found = true
			for _, fr := range rd.Ranges {
				// sub-1 GHz only devices do not expose the 2.4 GHz range
				if onlySub1G && fr.Min == 2400 {
					continue
				}
				r := FrequencyRange{Min: fr.Min, Max: fr.Max}
				for _, raw := range fr.PaSettings {
					s, err := parsePaSetting(raw)
					if err != nil {
						return nil, fmt.Errorf("target %s range %d-%d: %w", td.Name, fr.Min, fr.Max, err)
					}
					r.PaSettings = append(r.PaSettings, s)
				}
				t.Ranges = append(t.Ranges, r)
			}
		}
		if !found {
			return nil, fmt.Errorf("target %s references %s: %w", td.Name, td.RfDesign, ErrUnknownDesign)
		}

		if t.HighPA {
			highPaTargets = append(highPaTargets, t)
			continue
		}
		d := &Design{Name: t.Name, Target: t}
		db.designs[d.Name] = d
		db.designOrder = append(db.designOrder, d)
	}

	for _, t := range highPaTargets {
		i := strings.Index(t.Name, "-HIGH-PA")
		if i <= 0 {
			return nil, fmt.Errorf("high PA target %s: %w", t.Name, ErrUnknownDesign)
		}
		base := t.Name[:i]
		d, ok := db.designs[base]
		if !ok {
			return nil, fmt.Errorf("high PA target %s without base target %s: %w", t.Name, base, ErrUnknownDesign)
		}
		d.HighPA = t
	}

	if len(db.designOrder) == 0 {
		return nil, fmt.Errorf("%s: %w", desc.Name, ErrNoTargets)
	}

	return db, nil
}

func isKnownDevice(name string) bool {
	for _, n := range devNames {
		if n == name {
			return true
		}
	}
	return false
}

func parsePaSetting(raw paEntryRaw) (PaSetting, error) {
	s := PaSetting{
		Text:           raw.Dbm,
		RequiresVddrHH: raw.Option != "",
		OverrideBlock:  raw.OverrideBlock,
	}

	dbm, err := strconv.ParseFloat(raw.Dbm, 64)
	if err != nil {
		return s, fmt.Errorf("invalid dBm value %q: %w", raw.Dbm, err)
	}
	s.Dbm = dbm

	v, err := strconv.ParseUint(raw.Value, 0, 32)
	if err != nil {
		return s, fmt.Errorf("invalid PA value %q: %w", raw.Value, err)
	}
	s.Value = uint32(v)

	if raw.TxHighPa != "" {
		v, err := strconv.ParseUint(raw.TxHighPa, 0, 32)
		if err != nil {
			return s, fmt.Errorf("invalid high PA value %q: %w", raw.TxHighPa, err)
		}
		s.TxHighPa = uint32(v)
		s.HasTxHighPa = true
	}
	return s, nil
}

func readJSON(src Source, name string, v interface{}) error {
	b, err := src.Find(name)
	if err != nil {
		return fmt.Errorf("can't read %s: %w", name, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("can't parse %s: %w", name, err)
	}
	return nil
}
