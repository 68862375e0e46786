package jsonutil

import (
	"encoding/json"
	"os"
)

func MapToStruct(source map[string]any, target interface{}) error {
	data, err := json.Marshal(source)
	if err != nil {
		return err
	}

	err = json.Unmarshal(data, target)
	if err != nil {
		return err
	}

	return nil
}

func StructToMap(source interface{}) (map[string]any, error) {
	data, err := json.Marshal(source)
	if err != nil {
		return nil, err
	}

	var target map[string]any
	err = json.Unmarshal(data, &target)
	if err != nil {
		return nil, err
	}

	return target, nil
}

func ReadFile(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}

// WriteFile overwrites path in place with the indented encoding of source.
func WriteFile(path string, source interface{}) error {
	data, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
