package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/pkg/logger"
)

func TestNew_JSONConComponente(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Env: "prod", Level: "info", Out: &buf})

	comp := l.Component("billing")
	comp.Info().Str("cdc", "0180").Msg("documento firmado")
	comp.Debug().Msg("no se emite")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "billing", line["component"])
	assert.Equal(t, "documento firmado", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestNew_NivelInvalidoUsaInfo(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Config{Env: "test", Level: "ruidoso", Out: &buf})
	l.Debug().Msg("oculto")
	assert.Empty(t, buf.String())
	l.Warn().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}
