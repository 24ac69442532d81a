package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keybridge/internal/event"
)

const backgroundAgeScript = `
function accept(kind, priority, age_ms)
  if priority == "background" and age_ms > 50 then
    return false
  end
  return kind ~= "view.focused"
end
`

func TestScriptFilter(t *testing.T) {
	f, err := NewScriptFilter("test", backgroundAgeScript)
	require.NoError(t, err)
	t.Cleanup(f.Close)

	assert.Equal(t, "script:test", f.Name())

	diag := env(event.DiagnosticsChanged{Doc: 1})
	assert.True(t, f.Accept(diag, epoch.Add(10*time.Millisecond)))
	assert.False(t, f.Accept(diag, epoch.Add(60*time.Millisecond)))
	assert.True(t, f.Accept(env(event.ModeChanged{}), epoch.Add(time.Second)))
	assert.False(t, f.Accept(env(event.ViewFocused{View: 1}), epoch))
	assert.Zero(t, f.Failures())
}

func TestScriptFilterRuntimeErrorAccepts(t *testing.T) {
	f, err := NewScriptFilter("broken", `function accept(kind) error("boom") end`)
	require.NoError(t, err)
	t.Cleanup(f.Close)

	assert.True(t, f.Accept(env(event.DocumentOpened{}), epoch))
	assert.True(t, f.Accept(env(event.DocumentOpened{}), epoch))
	assert.Equal(t, uint64(2), f.Failures())
	assert.ErrorContains(t, f.LastError(), "boom")
}

func TestScriptFilterTimeout(t *testing.T) {
	f, err := NewScriptFilter("spin", `function accept() while true do end end`, WithScriptTimeout(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(f.Close)

	assert.True(t, f.Accept(env(event.DocumentOpened{}), epoch))
	assert.Equal(t, uint64(1), f.Failures())
}

func TestScriptFilterLoadErrors(t *testing.T) {
	_, err := NewScriptFilter("syntax", `function accept(`)
	assert.Error(t, err)

	_, err = NewScriptFilter("missing", `x = 1`)
	assert.ErrorIs(t, err, ErrNoEntryPoint)

	_, err = NewScriptFilter("sandboxed", `dofile("/etc/passwd")`)
	assert.Error(t, err)
}

func TestLoadScriptFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.lua")
	require.NoError(t, os.WriteFile(path, []byte(backgroundAgeScript), 0o600))

	f, err := LoadScriptFilter(path)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	assert.False(t, f.Accept(env(event.ViewFocused{}), epoch))

	_, err = LoadScriptFilter(filepath.Join(t.TempDir(), "absent.lua"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
