// Package patable resolves PA (TX power) tables by frequency for an RF design.
package patable

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/akhenakh/rfgen/devinfo"
)

var (
	ErrNoBand  = errors.New("no band found")
	ErrNoEntry = errors.New("no PA entry")
)

const (
	// boards characterized on an extended 2.4 GHz range, looked up at its top
	wideband24GBoard = "LAUNCHXL-CC1352P-4"
	wideband24GFreq  = 2499

	// board whose tables are used as defaults for the wide band board at 2.4 GHz
	default24GBoard = "LAUNCHXL-CC1352P1"
)

// Table is a list of PA entries, highest power first
type Table []devinfo.PaSetting

// Band is a closed frequency range in MHz with its PA tables
type Band struct {
	Min, Max int

	// a high PA table is available
	HighPA  bool
	Table   Table
	TableHi Table
}

func (b *Band) Contains(freq float64) bool {
	return freq >= float64(b.Min) && freq <= float64(b.Max)
}

// PaTable returns the standard or high PA table
func (b *Band) PaTable(highPA bool) (Table, error) {
	t := b.Table
	if highPA {
		t = b.TableHi
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("band %d-%d high PA %v: %w", b.Min, b.Max, highPA, ErrNoEntry)
	}
	return t, nil
}

// Resolver answers PA table queries for one board
type Resolver struct {
	db    *devinfo.Database
	board string
	bands []*Band
}

// NewResolver returns a resolver for board, an official board name or an internal design name
func NewResolver(db *devinfo.Database, board string) (*Resolver, error) {
	d, err := db.Design(board)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		db:    db,
		board: devinfo.BoardName(d.Name),
		bands: bandsOf(d),
	}, nil
}

func bandsOf(d *devinfo.Design) []*Band {
	var bands []*Band
	idx := make(map[string]*Band)
	for _, r := range d.Target.Ranges {
		b := &Band{Min: r.Min, Max: r.Max, Table: r.PaSettings}
		idx[rangeKey(r)] = b
		bands = append(bands, b)
	}
	if d.HighPA == nil {
		return bands
	}
	for _, r := range d.HighPA.Ranges {
		b, ok := idx[rangeKey(r)]
		if !ok {
			b = &Band{Min: r.Min, Max: r.Max}
			idx[rangeKey(r)] = b
			bands = append(bands, b)
		}
		b.HighPA = true
		b.TableHi = r.PaSettings
	}
	return bands
}

func rangeKey(r devinfo.FrequencyRange) string {
	return strconv.Itoa(r.Min) + "-" + strconv.Itoa(r.Max)
}

// Board returns the official board name of the resolver
func (r *Resolver) Board() string {
	return r.board
}

func (r *Resolver) Bands() []*Band {
	return r.bands
}

// Band returns the band containing freq (MHz)
func (r *Resolver) Band(freq float64) (*Band, error) {
	lfreq := freq
	if freq >= 2400 && r.board == wideband24GBoard {
		lfreq = wideband24GFreq
	}
	for _, b := range r.bands {
		if b.Contains(lfreq) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%v MHz: %w", freq, ErrNoBand)
}

// Table returns the PA table for freq
func (r *Resolver) Table(freq float64, highPA bool) (Table, error) {
	b, err := r.Band(freq)
	if err != nil {
		return nil, err
	}
	return b.PaTable(highPA)
}

// TxPowerOptions lists the selectable TX powers at freq, as written in the tables
func (r *Resolver) TxPowerOptions(freq float64, highPA bool) ([]string, error) {
	t, err := r.Table(freq, highPA)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(t))
	for i, e := range t {
		res[i] = e.Text
	}
	return res, nil
}

// DefaultTxPowerOptions is TxPowerOptions for the default board of this board
func (r *Resolver) DefaultTxPowerOptions(freq float64, highPA bool) ([]string, error) {
	if freq >= 2400 && r.board == wideband24GBoard {
		def, err := NewResolver(r.db, default24GBoard)
		if err != nil {
			return nil, err
		}
		return def.TxPowerOptions(freq, highPA)
	}
	return r.TxPowerOptions(freq, highPA)
}

// Entry returns the entry matching dbm as written in the table
func (r *Resolver) Entry(freq float64, highPA bool, dbm string) (devinfo.PaSetting, error) {
	t, err := r.Table(freq, highPA)
	if err != nil {
		return devinfo.PaSetting{}, err
	}
	for _, e := range t {
		if e.Text == dbm {
			return e, nil
		}
	}
	return devinfo.PaSetting{}, fmt.Errorf("%s dBm at %v MHz: %w", dbm, freq, ErrNoEntry)
}

// ValueByDbm returns the register value to program for dbm
func (r *Resolver) ValueByDbm(freq float64, highPA bool, dbm string) (uint32, error) {
	e, err := r.Entry(freq, highPA, dbm)
	if err != nil {
		return 0, err
	}
	return e.Raw(), nil
}

// DbmByValue returns the dBm of a standard PA register value,
// the highest power of the table when not found
func (r *Resolver) DbmByValue(freq float64, raw uint32) (string, error) {
	t, err := r.Table(freq, false)
	if err != nil {
		return "", err
	}
	for _, e := range t {
		if e.Value == raw {
			return e.Text, nil
		}
	}
	return t[0].Text, nil
}

// DefaultValue returns the register value of the highest power entry
func (r *Resolver) DefaultValue(freq float64, highPA bool) (uint32, error) {
	t, err := r.Table(freq, highPA)
	if err != nil {
		return 0, err
	}
	return t[0].Raw(), nil
}
