package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// ClassNamesFile is the manifest filename that accompanies an archive.
const ClassNamesFile = "class_names.json"

// FashionMNISTClasses are the ten canonical Fashion-MNIST class names,
// indexed by label value.
var FashionMNISTClasses = []string{
	"T-shirt/top",
	"Trouser",
	"Pullover",
	"Dress",
	"Coat",
	"Sandal",
	"Shirt",
	"Sneaker",
	"Bag",
	"Ankle boot",
}

// LoadClassNames reads a JSON string-array manifest from path.
func LoadClassNames(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class names: %w", err)
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("failed to parse class names: %w", err)
	}

	return names, nil
}

// SaveClassNames writes names to path as an indented JSON array.
func SaveClassNames(path string, names []string) error {
	raw, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal class names: %w", err)
	}

	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write class names: %w", err)
	}

	return nil
}
