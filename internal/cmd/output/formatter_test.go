package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = Data{
	Headers:    []string{"Metric", "Value"},
	Rows:       [][]string{{"pages", "2"}, {"known names", "3"}},
	RightAlign: []bool{false, true},
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, sample))
	out := buf.String()
	assert.Contains(t, strings.ToUpper(out), "METRIC")
	assert.Contains(t, out, "known names")
	assert.Contains(t, out, "3")
}

func TestJSONFormatterUsesRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, sample))
	assert.JSONEq(t, `[{"metric":"pages","value":"2"},{"metric":"known names","value":"3"}]`, buf.String())
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, map[string]string{"version": "dev"}))
	assert.Equal(t, "version: dev\n", buf.String())
}

func TestTableFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n":1}`, buf.String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("yaml"))
}
