package logging

import (
	"bytes"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := New(&stdout, &stderr)

	l.Info("Reading hit mappings from database", "database")
	assert.Regexp(t, regexp.MustCompile(`^\[\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\] \[database\] Reading hit mappings from database\n$`), stdout.String())

	l.Error("Acqu ErrorBlock not completely present in buffer")
	var record map[string]any
	require.NoError(t, json.Unmarshal(stderr.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "Acqu ErrorBlock not completely present in buffer", record["msg"])
}

func TestHandlerWithAttrs(t *testing.T) {
	var out bytes.Buffer
	l := New(&out, &out)
	l.InfoLog = l.InfoLog.With("run", 1234)
	l.Info("Found event with no hits at all", "unpacker")
	assert.Contains(t, out.String(), "[1234] [unpacker] Found event with no hits at all")
}
