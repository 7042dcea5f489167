package pkg

import (
	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Settings holds the knobs that aren't per-invocation flags. They come from
// daedalus.toml next to the project root and DAEDALUS_* environment
// variables; command line flags stay with cobra.
type Settings struct {
	Log struct {
		Level string `default:"info" usage:"Log level for task output (debug, info, warn, error)"`
		JSON  bool   `default:"false" usage:"Output raw JSON events instead of pretty console messages"`
	}
	ToolsDir string `default:".tools" usage:"Directory the helper tools are installed into, relative to the project root"`
	Deps     struct {
		Manifest string `default:"DEPS.yml" usage:"Dependency manifest, relative to the project root"`
		Stamps   string `default:"DEPS.stamps" usage:"Stamp file tracking installed dependencies"`
	}
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// LoadSettings reads and validates the settings. Missing files are fine, the
// defaults cover everything.
func LoadSettings() (*Settings, error) {
	settings := Settings{}
	loader := aconfig.LoaderFor(&settings, aconfig.Config{
		SkipFlags: true,
		EnvPrefix: "DAEDALUS",
		Files:     []string{"daedalus.toml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})

	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "Failed to load settings")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

// Validate verifies that all settings have usable values.
func (s *Settings) Validate() error {
	if _, ok := logLevels[s.Log.Level]; !ok {
		return eris.Errorf("Invalid value for log.level: %s", s.Log.Level)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level.
func (s *Settings) LogLevel() zerolog.Level {
	return logLevels[s.Log.Level]
}
