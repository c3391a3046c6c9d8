package imf

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// compactEnvelope mirrors the SDMX compact layout. Series and Obs are kept
// raw because the service encodes a single element as an object and multiple
// elements as an array.
type compactEnvelope struct {
	CompactData struct {
		DataSet struct {
			Series json.RawMessage `json:"Series"`
		} `json:"DataSet"`
	} `json:"CompactData"`
}

// flattenCompact turns the nested compact payload into long-format rows:
// one map per observation, carrying the series attributes plus the
// observation's own fields. An empty data set yields an empty row list.
func flattenCompact(body []byte) ([]map[string]interface{}, error) {
	var env compactEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	seriesList, err := rawList(env.CompactData.DataSet.Series)
	if err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}

	rows := make([]map[string]interface{}, 0, len(seriesList))
	for _, rawSeries := range seriesList {
		var series map[string]json.RawMessage
		if err := json.Unmarshal(rawSeries, &series); err != nil {
			return nil, fmt.Errorf("decode series element: %w", err)
		}

		attrs := make(map[string]interface{}, len(series))
		for k, v := range series {
			if k == "Obs" {
				continue
			}
			attrs[k] = decodeValue(v)
		}

		obsList, err := rawList(series["Obs"])
		if err != nil {
			return nil, fmt.Errorf("decode observations: %w", err)
		}

		for _, rawObs := range obsList {
			var obs map[string]json.RawMessage
			if err := json.Unmarshal(rawObs, &obs); err != nil {
				return nil, fmt.Errorf("decode observation element: %w", err)
			}

			row := make(map[string]interface{}, len(attrs)+len(obs))
			for k, v := range attrs {
				row[k] = v
			}
			for k, v := range obs {
				row[k] = decodeValue(v)
			}
			rows = append(rows, row)
		}
	}

	return rows, nil
}

// rawList accepts the service's single-object-or-array encoding and always
// returns a list. A missing or null value is an empty list.
func rawList(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	return []json.RawMessage{trimmed}, nil
}

func decodeValue(raw json.RawMessage) interface{} {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	return v
}
