package patable

import (
	"fmt"
	"math"
)

// Combine merges a standard and a high PA table, highest power first.
// Scanning from the low power end, an entry is kept only when it raises the power.
func Combine(std, hi Table) Table {
	all := make(Table, 0, len(hi)+len(std))
	all = append(all, hi...)
	all = append(all, std...)

	var res Table
	high := math.Inf(-1)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Dbm > high {
			res = append(Table{all[i]}, res...)
			high = all[i].Dbm
		}
	}
	return res
}

// Row is one line of a generated TX power table
type Row struct {
	Dbm   int
	Entry string

	// the database dBm when it was not an integer
	Rounded string

	RequiresVddrHH bool
}

// Rows returns the rows of t from the lowest power. Powers are rounded to integers,
// down for combined tables, and bumped by one when colliding with the previous row.
func Rows(t Table, combined bool) []Row {
	rows := make([]Row, 0, len(t))
	prev := math.MinInt32
	for i := len(t) - 1; i >= 0; i-- {
		e := t[i]
		row := Row{
			Entry:          EntryString(e.Value, e.TxHighPa),
			RequiresVddrHH: e.RequiresVddrHH,
		}
		if e.Dbm != math.Trunc(e.Dbm) {
			row.Rounded = e.Text
		}
		if combined {
			row.Dbm = int(math.Floor(e.Dbm))
		} else {
			row.Dbm = int(math.Floor(e.Dbm + 0.5))
		}
		if row.Dbm == prev {
			row.Dbm++
		}
		prev = row.Dbm
		rows = append(rows, row)
	}
	return rows
}

// EntryString decodes a PA value into its entry macro, 0xFFFF selects the high PA
// with its settings taken from txHighPa
func EntryString(value, txHighPa uint32) string {
	highPA := value == 0xFFFF
	val := value
	if highPA {
		val = txHighPa
	}
	bias := val & 0x3f
	gain := (val >> 6) & 0x03
	boost := (val >> 8) & 0x01
	coefficient := (val >> 9) & 0x7f

	if highPA {
		ldoTrim := (val >> 16) & 0x3f
		return fmt.Sprintf("RF_TxPowerTable_HIGH_PA_ENTRY(%d, %d, %d, %d, %d)", bias, gain, boost, coefficient, ldoTrim)
	}
	return fmt.Sprintf("RF_TxPowerTable_DEFAULT_PA_ENTRY(%d, %d, %d, %d)", bias, gain, boost, coefficient)
}
