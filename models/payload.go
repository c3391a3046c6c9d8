package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnknownShape is the hard adaptation failure: the payload is neither a
// JSON array nor a JSON object, so no adapter variant can process it.
var ErrUnknownShape = errors.New("unrecognized payload shape")

// PayloadShape classifies which upstream payload structure a raw response
// follows. The shape is detected once at the pipeline entry; everything
// downstream switches on the tag instead of re-inspecting the payload.
type PayloadShape int

const (
	ShapeUnknown PayloadShape = iota
	ShapeDealList
	ShapeShopMap
	ShapeIndicatorTable
)

func (s PayloadShape) String() string {
	switch s {
	case ShapeDealList:
		return "deal_list"
	case ShapeShopMap:
		return "shop_map"
	case ShapeIndicatorTable:
		return "indicator_table"
	default:
		return "unknown"
	}
}

// indicatorColumns are the keys whose presence in a row marks a long-format
// indicator table. The list covers the upstream column-name variants.
var indicatorColumns = []string{
	"TIME_PERIOD", "@TIME_PERIOD", "time_period",
	"REF_AREA", "@REF_AREA", "ref_area",
	"OBS_VALUE", "@OBS_VALUE", "obs_value",
	"INDICATOR", "@INDICATOR", "indicator", "indicator_code",
}

// DetectShape classifies a raw payload. A top-level array whose first
// object element carries indicator-style columns is an indicator table;
// any other array is a deal list (an empty array normalizes to an empty
// record sequence either way). A top-level object is the legacy shop map.
// Anything else is unknown.
func DetectShape(payload []byte) PayloadShape {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 {
		return ShapeUnknown
	}

	switch trimmed[0] {
	case '{':
		return ShapeShopMap
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(payload, &elements); err != nil {
			return ShapeUnknown
		}
		if len(elements) == 0 {
			return ShapeDealList
		}
		var first map[string]json.RawMessage
		if err := json.Unmarshal(elements[0], &first); err != nil {
			return ShapeDealList
		}
		for key := range first {
			for _, col := range indicatorColumns {
				if strings.EqualFold(key, col) {
					return ShapeIndicatorTable
				}
			}
		}
		return ShapeDealList
	default:
		return ShapeUnknown
	}
}
