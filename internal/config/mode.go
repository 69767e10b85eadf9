package config

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Mode selects development or production behaviour. It alters
// instrumentation and optimisation, never the structure of the output.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode resolves the build mode from the value of the mode environment
// variable. An empty or unrecognised value resolves to development.
func ParseMode(value string) Mode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return ModeDevelopment
	case string(ModeDevelopment):
		return ModeDevelopment
	case string(ModeProduction):
		return ModeProduction
	default:
		log.Warn().Str("mode", value).Msg("Unrecognised build mode, using development")
		return ModeDevelopment
	}
}

// Debug reports whether debug instrumentation is enabled for the mode.
func (m Mode) Debug() bool {
	return m != ModeProduction
}

func (m Mode) String() string {
	if m == "" {
		return string(ModeDevelopment)
	}
	return string(m)
}
