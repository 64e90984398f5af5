package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringSlice is stored as a JSON array in a text column.
type StringSlice []string

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		// nil slices are stored as "[]" so the column never holds JSON null
		return "[]", nil
	}
	jsonData, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	data, err := columnBytes("StringSlice", value)
	if err != nil {
		return err
	}
	if data == nil {
		*s = StringSlice{}
		return nil
	}
	return json.Unmarshal(data, (*[]string)(s))
}

// ChoiceMap is a letter → choice text mapping stored as a JSON object.
// encoding/json sorts the keys, so equal maps are stored identically.
type ChoiceMap map[string]string

// Value implements the driver.Valuer interface
func (c ChoiceMap) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	jsonData, err := json.Marshal(map[string]string(c))
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface
func (c *ChoiceMap) Scan(value interface{}) error {
	data, err := columnBytes("ChoiceMap", value)
	if err != nil {
		return err
	}
	m := make(map[string]string)
	if data != nil {
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
	}
	*c = m
	return nil
}

// columnBytes returns nil for NULL, empty and "null" values.
func columnBytes(typeName string, value interface{}) ([]byte, error) {
	var b []byte
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return nil, fmt.Errorf("%s Scan: unsupported type %T", typeName, value)
	}
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	return b, nil
}
