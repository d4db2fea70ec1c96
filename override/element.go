package override

import (
	"fmt"

	"github.com/Jeffail/gabs/v2"
)

// Kind classifies a fragment element
type Kind int

const (
	// register macro with a literal payload, eg HW_REG_OVERRIDE(0x6088,0x001A)
	Macro Kind = iota
	// raw 32 bits word
	Literal
	TxStdPower
	Tx20Power
	AnalogDivider
	// element type without a known rendering, rendered as an error marker
	Unknown
)

var macroTypes = map[string]bool{
	"HW_REG_OVERRIDE":       true,
	"MCE_RFE_OVERRIDE":      true,
	"HW32_ARRAY_OVERRIDE":   true,
	"ADI_HALFREG_OVERRIDE":  true,
	"ADI_REG_OVERRIDE":      true,
	"ADI_2HALFREG_OVERRIDE": true,
	"HPOSC_OVERRIDE":        true,
}

// Element is one rendered override word
type Element struct {
	Type    string
	Comment string
	Kind    Kind

	// C expression, or the error marker for Unknown elements
	Text string
}

// Data holds the values of the computed elements
type Data struct {
	// standard PA register value
	TxPower uint32
	// high PA register value
	TxPowerHi uint32

	FrontEndMode int
	LoDivider    int
}

func kindOf(typ string) Kind {
	if macroTypes[typ] {
		return Macro
	}
	switch typ {
	case "ELEMENT":
		return Literal
	case "TXSTDPA":
		return TxStdPower
	case "TX20PA":
		return Tx20Power
	case "ANADIV":
		return AnalogDivider
	}
	return Unknown
}

// parseElements reads the element list of a fragment file, a single element
// may be given as an object
func parseElements(b []byte) ([]*gabs.Container, error) {
	c, err := gabs.ParseJSON(b)
	if err != nil {
		return nil, err
	}
	if !c.Exists("elements") {
		return nil, nil
	}
	el := c.S("elements")
	switch el.Data().(type) {
	case []interface{}:
		return el.Children(), nil
	case map[string]interface{}:
		return []*gabs.Container{el}, nil
	case nil:
		return nil, nil
	}
	return nil, ErrUnexpectedData
}

// renderElements renders the elements of one fragment, a TX20 element switches
// the analog divider of the following elements to the high PA front-end
func renderElements(items []*gabs.Container, data Data) []Element {
	res := make([]Element, 0, len(items))
	hasTx20 := false
	for _, it := range items {
		e := Element{
			Type:    stringOf(it, "type"),
			Comment: stringOf(it, "comment"),
		}
		e.Kind = kindOf(e.Type)
		value := stringOf(it, "value")

		switch e.Kind {
		case Macro:
			e.Text = e.Type + "(" + value + ")"
		case Literal:
			e.Text = "(uint32_t)" + value
		case TxStdPower:
			e.Text = "TX_STD_POWER_OVERRIDE(" + hex(data.TxPower, 4) + ")"
		case Tx20Power:
			e.Text = "TX20_POWER_OVERRIDE(" + hex(data.TxPowerHi, 8) + ")"
			hasTx20 = true
		case AnalogDivider:
			e.Text = "(uint32_t)" + hex(AnaDiv(data.LoDivider, data.FrontEndMode, hasTx20), 8)
		default:
			e.Text = "//** ERROR: Element type not implemented: " + e.Type
		}
		res = append(res, e)
	}
	return res
}

// AnaDiv computes the analog divider word from the LO divider and front-end mode,
// tx20 selects the high PA path
func AnaDiv(loDivider, frontEndMode int, tx20 bool) uint32 {
	if tx20 {
		frontEndMode = 255
	}

	var fsOnly uint32
	switch loDivider {
	case 0:
		fsOnly = 0x0502
	case 2:
		fsOnly = 0x0102
	case 4, 6, 12:
		fsOnly = 0xF101
	case 5, 10, 15, 30:
		fsOnly = 0x1101
	}

	var txSetting uint32
	switch {
	case frontEndMode == 255:
		txSetting = (fsOnly | 0x00C0) &^ 0x0400
	case frontEndMode == 0:
		// differential
		txSetting = fsOnly | 0x0030
	case frontEndMode&1 == 1:
		// single ended on RFP
		txSetting = fsOnly | 0x0010
	default:
		// single ended on RFN
		txSetting = fsOnly | 0x0020
	}
	return txSetting<<16 | 0x0703
}

func hex(v uint32, digits int) string {
	return fmt.Sprintf("0x%0*X", digits, v)
}

func stringOf(c *gabs.Container, key string) string {
	if !c.Exists(key) {
		return ""
	}
	switch v := c.S(key).Data().(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	}
	return ""
}
