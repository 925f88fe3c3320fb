package stages

import "errors"

var (
	ErrDrawsNotAllowed     = errors.New("draws are not allowed in knockout stages")
	ErrUnknownStageMode    = errors.New("unknown stage mode")
	ErrFixturesExist       = errors.New("stage fixtures are already created")
	ErrNoFixturesGenerated = errors.New("stage produced no fixtures")
)
