// Package definition reads the YAML surface of a tournament definition.
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/Dosada05/tournaments/models"
)

var ErrInvalidDefinition = errors.New("invalid tournament definition")

// Parse decodes a definition. Unknown keys are rejected. Stages without an id
// get one derived from their name, or "stage-<n>".
func Parse(raw []byte) (*models.Definition, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)

	var def models.Definition
	if err := decoder.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: definition is empty", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	for i := range def.Stages {
		stage := &def.Stages[i]
		stage.ID = strings.TrimSpace(stage.ID)
		if stage.ID == "" {
			stage.ID = defaultID(stage.Name, i)
		}
	}
	return &def, nil
}

func defaultID(name string, position int) string {
	if id := slug.Make(name); id != "" {
		return id
	}
	return fmt.Sprintf("stage-%d", position+1)
}
