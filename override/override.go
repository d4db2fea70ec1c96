// Package override resolves the register override tables of a PHY setting.
package override

import (
	"fmt"
	"strings"

	"github.com/akhenakh/rfgen/devinfo"
)

const defaultPtrName = "pRegOverride"

// Fragment is one override file with its rendered elements
type Fragment struct {
	File     string
	Elements []Element
}

// Struct is one override array
type Struct struct {
	PtrName   string
	CmdName   string
	Fragments []Fragment
}

// Custom is an application or stack specific override macro, included from Path
type Custom struct {
	Path  string
	Macro string
}

// Table is the resolved set of override arrays of a setting
type Table struct {
	Structs []*Struct

	// custom overrides are appended to the first struct
	Custom []Custom

	// number of elements in the first struct before the custom overrides
	StackOffset int

	// number of elements with an unknown type
	Unknown int
}

type Options struct {
	HighPA      bool
	CoexEnabled bool
	Data        Data

	// fragment of the selected PA entry, added to every struct
	TxPowerFile string

	Custom []Custom
}

// Resolve builds the override table of setting, reading fragments from frags
func Resolve(setting *devinfo.PhySetting, frags devinfo.Source, opts Options) (*Table, error) {
	b := NewBuilder()
	for _, raw := range setting.Commands {
		if err := b.Add(raw); err != nil {
			return nil, fmt.Errorf("setting %s: %w", setting.Key, err)
		}
	}
	cmds, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("setting %s: %w", setting.Key, err)
	}
	return ResolveCommands(cmds, frags, opts)
}

// ResolveCommands builds the override table of already merged commands
func ResolveCommands(cmds []Command, frags devinfo.Source, opts Options) (*Table, error) {
	type slot struct {
		cmd   string
		entry Entry
	}

	// one struct per pointer name, the last declaration wins, the first position is kept
	var order []string
	slots := make(map[string]slot)
	for _, cmd := range cmds {
		for _, e := range cmd.Entries {
			if e.HighPAOnly && !opts.HighPA {
				continue
			}
			if _, ok := slots[e.PtrName]; !ok {
				order = append(order, e.PtrName)
			}
			slots[e.PtrName] = slot{cmd: cmd.Name, entry: e}
		}
	}

	t := &Table{Custom: opts.Custom}
	for i, ptr := range order {
		s := slots[ptr]
		files := uniqueFiles(s.entry.Files, opts.TxPowerFile)

		st := &Struct{PtrName: ptr, CmdName: s.cmd}
		n := 0
		for _, file := range files {
			if !includeFile(file, ptr, opts.CoexEnabled) {
				continue
			}
			b, err := frags.Find(file)
			if err != nil {
				return nil, err
			}
			items, err := parseElements(b)
			if err != nil {
				return nil, fmt.Errorf("fragment %s: %w", file, err)
			}
			if len(items) == 0 {
				continue
			}
			els := renderElements(items, opts.Data)
			for _, e := range els {
				if e.Kind == Unknown {
					t.Unknown++
				}
			}
			st.Fragments = append(st.Fragments, Fragment{File: file, Elements: els})
			n += len(els)
		}
		if i == 0 {
			t.StackOffset = n
		}
		t.Structs = append(t.Structs, st)
	}
	return t, nil
}

// StructNames returns the struct names with the default pointer prefix replaced by symName
func (t *Table) StructNames(symName string) []string {
	names := make([]string, 0, len(t.Structs))
	seen := make(map[string]bool)
	for _, s := range t.Structs {
		n := strings.Replace(s.PtrName, defaultPtrName, symName, 1)
		if seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	return names
}

func uniqueFiles(files []string, txPowerFile string) []string {
	res := make([]string, 0, len(files)+1)
	seen := make(map[string]bool)
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		res = append(res, f)
	}
	if txPowerFile != "" && !seen[txPowerFile] {
		res = append(res, txPowerFile)
	}
	return res
}

// includeFile applies the file name rules: 14 dBm fragments only go to the
// default struct, coexistence fragments follow the coexistence setting
func includeFile(file, ptrName string, coexEnabled bool) bool {
	if strings.Contains(file, "14dbm") && ptrName != defaultPtrName {
		return false
	}
	if strings.Contains(file, "coex") {
		isCoex := !strings.Contains(file, "non_coex")
		return isCoex == coexEnabled
	}
	return true
}
