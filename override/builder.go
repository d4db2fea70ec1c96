package override

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Jeffail/gabs/v2"
)

var ErrUnexpectedData = errors.New("unexpected override data type")

// Command is an RF command with its merged override declaration
type Command struct {
	Name    string
	Entries []Entry
}

// Entry names an override pointer and the fragment files filling it
type Entry struct {
	PtrName string
	Files   []string

	// dropped unless the high PA is in use
	HighPAOnly bool
}

type pending struct {
	name  string
	base  *gabs.Container
	patch *gabs.Container
}

// Builder collects raw RF commands then merges each override patch onto
// its base declaration. Build returns immutable commands, patches are dropped.
type Builder struct {
	cmds []pending
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Add parses one raw command
func (b *Builder) Add(raw json.RawMessage) error {
	c, err := gabs.ParseJSON(raw)
	if err != nil {
		return fmt.Errorf("can't parse command: %w", err)
	}
	name, _ := c.S("name").Data().(string)
	p := pending{name: name}
	if c.Exists("overrideField") {
		p.base = c.S("overrideField")
	}
	if c.Exists("overridePatch") {
		p.patch = c.S("overridePatch")
	}
	b.cmds = append(b.cmds, p)
	return nil
}

// Build merges the patches and returns the commands declaring overrides, in order
func (b *Builder) Build() ([]Command, error) {
	var res []Command
	for _, p := range b.cmds {
		if p.base == nil {
			continue
		}
		field := merge(p.base, p.patch)
		cmd := Command{Name: p.name}

		switch fd := field.Data().(type) {
		case map[string]interface{}:
			ptr, _ := fd["name"].(string)
			files, err := blockFiles(fd["block"])
			if err != nil {
				return nil, fmt.Errorf("command %s: %w", p.name, err)
			}
			cmd.Entries = append(cmd.Entries, Entry{PtrName: ptr, Files: files})
		case []interface{}:
			for _, item := range field.Children() {
				ptr, _ := item.S("name").Data().(string)
				files, err := blockFiles(item.S("block").Data())
				if err != nil {
					return nil, fmt.Errorf("command %s pointer %s: %w", p.name, ptr, err)
				}
				if len(files) == 0 {
					continue
				}
				cmd.Entries = append(cmd.Entries, Entry{
					PtrName:    ptr,
					Files:      files,
					HighPAOnly: strings.Contains(ptr, "pRegOverrideTx"),
				})
			}
		default:
			return nil, fmt.Errorf("command %s: %w", p.name, ErrUnexpectedData)
		}
		res = append(res, cmd)
	}
	return res, nil
}

// blockFiles accepts a single file name or a list of file names
func blockFiles(block interface{}) ([]string, error) {
	switch v := block.(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		files := make([]string, 0, len(v))
		for _, f := range v {
			s, ok := f.(string)
			if !ok {
				return nil, ErrUnexpectedData
			}
			files = append(files, s)
		}
		return files, nil
	}
	return nil, ErrUnexpectedData
}

// merge deep merges patch onto base: objects merge key by key, arrays index
// by index, any other patch value replaces the base one
func merge(base, patch *gabs.Container) *gabs.Container {
	if patch == nil || patch.Data() == nil {
		return base
	}
	if base == nil || base.Data() == nil {
		return patch
	}

	switch pd := patch.Data().(type) {
	case map[string]interface{}:
		if _, ok := base.Data().(map[string]interface{}); !ok {
			return patch
		}
		res := gabs.New()
		for k, v := range base.ChildrenMap() {
			if _, err := res.Set(v.Data(), k); err != nil {
				return patch
			}
		}
		for k, v := range patch.ChildrenMap() {
			var bv *gabs.Container
			if base.Exists(k) {
				bv = base.S(k)
			}
			if _, err := res.Set(merge(bv, v).Data(), k); err != nil {
				return patch
			}
		}
		return res
	case []interface{}:
		bd, ok := base.Data().([]interface{})
		if !ok {
			return patch
		}
		n := len(bd)
		if len(pd) > n {
			n = len(pd)
		}
		res := make([]interface{}, n)
		for i := 0; i < n; i++ {
			switch {
			case i >= len(pd):
				res[i] = bd[i]
			case i >= len(bd):
				res[i] = pd[i]
			default:
				res[i] = merge(gabs.Wrap(bd[i]), gabs.Wrap(pd[i])).Data()
			}
		}
		return gabs.Wrap(res)
	}
	return patch
}
