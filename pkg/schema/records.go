package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Records is one batch of pre-parsed schema messages.
type Records struct {
	Serializers []SerializerRecord `yaml:"serializers,omitempty"`
	Classes     []ClassRecord      `yaml:"classes,omitempty"`
}

// SerializerRecord describes one serializer version.
type SerializerRecord struct {
	Name    string        `yaml:"name"`
	Version int32         `yaml:"version"`
	Fields  []FieldRecord `yaml:"fields"`
}

// FieldRecord describes one field of a serializer. Optional encode hints
// are nil when absent.
type FieldRecord struct {
	VarName           string   `yaml:"var_name"`
	VarType           string   `yaml:"var_type"`
	Encoder           string   `yaml:"encoder,omitempty"`
	BitCount          *int32   `yaml:"bit_count,omitempty"`
	LowValue          *float32 `yaml:"low_value,omitempty"`
	HighValue         *float32 `yaml:"high_value,omitempty"`
	EncodeFlags       *int32   `yaml:"encode_flags,omitempty"`
	SerializerName    string   `yaml:"serializer_name,omitempty"`
	SerializerVersion int32    `yaml:"serializer_version,omitempty"`
}

// ClassRecord maps a class id to the network name of its serializer.
type ClassRecord struct {
	ClassID     int32  `yaml:"class_id"`
	NetworkName string `yaml:"network_name"`
}

// ParseRecords decodes a yaml schema document.
func ParseRecords(data []byte) (*Records, error) {
	var recs Records
	if err := yaml.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to parse schema records: %w", err)
	}
	return &recs, nil
}

// LoadRecords reads a yaml schema document from disk.
func LoadRecords(path string) (*Records, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseRecords(data)
}

// MarshalRecords encodes records as yaml.
func MarshalRecords(recs *Records) ([]byte, error) {
	data, err := yaml.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema records: %w", err)
	}
	return data, nil
}
