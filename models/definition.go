package models

// Definition is the parsed form of a tournament definition.
type Definition struct {
	Podium []string          `yaml:"podium" json:"podium"`
	Stages []StageDefinition `yaml:"stages" json:"stages"`
}

type StageDefinition struct {
	Mode              StageMode `yaml:"mode" json:"mode"`
	ID                string    `yaml:"id" json:"id"`
	Name              string    `yaml:"name,omitempty" json:"name,omitempty"`
	PlayedBy          []string  `yaml:"played-by,omitempty" json:"played_by,omitempty"`
	MinGroupSize      *int      `yaml:"min-group-size,omitempty" json:"min_group_size,omitempty"`
	MaxGroupSize      *int      `yaml:"max-group-size,omitempty" json:"max_group_size,omitempty"`
	WithReturns       bool      `yaml:"with-returns,omitempty" json:"with_returns,omitempty"`
	DoubleElimination bool      `yaml:"double-elimination,omitempty" json:"double_elimination,omitempty"`
}
