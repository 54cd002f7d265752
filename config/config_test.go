package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoZeroFields(t *testing.T) {
	cfg := Default()

	for _, field := range visit(newVar(*cfg), "Config", false) {
		assert.Fail(t, "zero-value field", field)
	}
}

func TestLoad(t *testing.T) {
	t.Run("overlay", func(t *testing.T) {
		doc := `{
			"HTTP": {"MaxFrameSize": 1024, "KeepAlive": false},
			"NET": {"IdleTimeout": 1000000000},
			"Headers": {"Default": {"Server": "reactor"}}
		}`
		cfg, err := Load(strings.NewReader(doc))
		require.NoError(t, err)
		require.Equal(t, 1024, cfg.HTTP.MaxFrameSize)
		require.False(t, cfg.HTTP.KeepAlive)
		require.Equal(t, time.Second, cfg.NET.IdleTimeout)
		require.Equal(t, "reactor", cfg.Headers.Default["Server"])
		// untouched fields keep their defaults
		require.Equal(t, Default().Body, cfg.Body)
		require.Equal(t, Default().URI, cfg.URI)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := Load(strings.NewReader(`{"HTTP": `))
		require.Error(t, err)
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"Loop": {"Workers": 3}}`), 0o644))
		cfg, err := FromFile(path)
		require.NoError(t, err)
		require.Equal(t, 3, cfg.Loop.Workers)

		_, err = FromFile(filepath.Join(t.TempDir(), "nonexistent.json"))
		require.Error(t, err)
	})
}

type variable struct {
	Type  reflect.Type
	Value reflect.Value
}

func newVar(a any) variable {
	return variable{reflect.TypeOf(a), reflect.ValueOf(a)}
}

func visit(a variable, name string, nullable bool) (fields []string) {
	if a.Type.Kind() == reflect.Struct {
		for field := range a.Value.NumField() {
			v1 := variable{a.Type.Field(field).Type, a.Value.Field(field)}
			fieldname := a.Type.Field(field).Name
			isNullable := a.Type.Field(field).Tag.Get("test") == "nullable"
			fields = append(fields, visit(v1, name+"."+fieldname, isNullable)...)
		}

		return fields
	}

	if a.Value.IsZero() && !nullable {
		return []string{name}
	}

	return nil
}
