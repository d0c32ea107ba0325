package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlty-sh/qlty/internal/qlty/config"
)

func TestDispatchReturnsDedicatedParsersByFormat(t *testing.T) {
	cases := map[config.OutputFormat]interface{}{
		config.FormatSarif:  Sarif{},
		config.FormatClippy: Clippy{},
		config.FormatEslint: Eslint{},
		config.FormatBiome:  Biome{},
	}

	for format, want := range cases {
		p, err := Dispatch(config.DriverDef{OutputFormat: format})
		require.NoError(t, err)
		assert.IsType(t, want, p)
	}
}

func TestDispatchRegexRequiresPattern(t *testing.T) {
	_, err := Dispatch(config.DriverDef{OutputFormat: config.FormatRegex})
	assert.Error(t, err)
}

func TestDispatchRegexUsesDriverPattern(t *testing.T) {
	p, err := Dispatch(config.DriverDef{OutputFormat: config.FormatRegex, OutputRegex: `(?P<path>\S+): (?P<message>.+)`})
	require.NoError(t, err)
	assert.IsType(t, Regex{}, p)
}

func TestDispatchUnknownFormatFallsBackToGenericJSON(t *testing.T) {
	p, err := Dispatch(config.DriverDef{OutputFormat: config.FormatPylint})
	require.NoError(t, err)
	assert.IsType(t, GenericJSON{}, p)
}

func TestDispatchTrivySarifDefaultsToVulnerabilityCategory(t *testing.T) {
	p, err := Dispatch(config.DriverDef{OutputFormat: config.FormatTrivySarif})
	require.NoError(t, err)
	sarif, ok := p.(Sarif)
	require.True(t, ok)
	require.NotNil(t, sarif.Category)
}
