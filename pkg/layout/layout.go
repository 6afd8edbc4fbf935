// Package layout decodes serialized class layouts produced by the front end.
//
// A layout blob is the base64 encoding of a YAML document:
//
//	classes:
//	  - id: Point
//	    members:
//	      - {id: x, type: float, offset: 0}
//	      - {id: y, type: float, offset: 4}
//
// Offsets are taken as given; the front end has already aligned them.
package layout

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type Member struct {
	ID     string `yaml:"id"`
	Type   string `yaml:"type"`
	Offset int    `yaml:"offset"`
}

type Class struct {
	ID      string   `yaml:"id"`
	Members []Member `yaml:"members"`
}

type document struct {
	Classes []Class `yaml:"classes"`
}

// Decode turns a base64 blob into the forest of class layouts it describes.
func Decode(blob string) ([]Class, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return nil, fmt.Errorf("layout blob is not valid base64: %w", err)
	}
	return DecodeYAML(raw)
}

// DecodeYAML reads the plain YAML form of a layout document.
func DecodeYAML(raw []byte) ([]Class, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode layout: %w", err)
	}
	for _, c := range doc.Classes {
		if c.ID == "" {
			return nil, fmt.Errorf("layout contains a class without id")
		}
		for i, m := range c.Members {
			if m.ID == "" || m.Type == "" {
				return nil, fmt.Errorf("class '%s': member %d needs id and type", c.ID, i)
			}
			if m.Offset < 0 {
				return nil, fmt.Errorf("class '%s': member '%s' has negative offset %d", c.ID, m.ID, m.Offset)
			}
		}
	}
	return doc.Classes, nil
}

// Encode produces the blob form of classes. Front ends and tests use it to
// build layout input.
func Encode(classes []Class) (string, error) {
	raw, err := yaml.Marshal(document{Classes: classes})
	if err != nil {
		return "", fmt.Errorf("failed to encode layout: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
