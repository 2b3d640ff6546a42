package catalog

import (
	"encoding/json"
	"fmt"
)

func marshalFields(fields []Field) ([]byte, error) {
	if fields == nil {
		fields = []Field{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}
	return data, nil
}

// UnmarshalJSON restores the ordered pairs written by MarshalJSON.
func (d *Details) UnmarshalJSON(data []byte) error {
	var fields []Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("unmarshal details: %w", err)
	}
	*d = Details{}
	for _, f := range fields {
		d.Set(f.Key, f.Value)
	}
	return nil
}
