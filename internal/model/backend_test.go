package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kakehashi/internal/model"
)

// ptr is a convenience helper for pointer literals in test cases.
func ptr[T any](v T) *T { return &v }

// ---- EffectivePrefix ------------------------------------------------------

func TestEffectivePrefix_UsesPrefixWhenSet(t *testing.T) {
	b := model.Backend{Name: "github", Prefix: "gh"}
	assert.Equal(t, "gh", b.EffectivePrefix())
}

func TestEffectivePrefix_FallsBackToName(t *testing.T) {
	b := model.Backend{Name: "github"}
	assert.Equal(t, "github", b.EffectivePrefix())
}

// ---- Timeout --------------------------------------------------------------

func TestTimeout_ConvertsSeconds(t *testing.T) {
	b := model.Backend{TimeoutSeconds: 2.5}
	assert.Equal(t, 2500*time.Millisecond, b.Timeout())
}

func TestTimeout_ZeroFallsBackToDefault(t *testing.T) {
	b := model.Backend{}
	assert.Equal(t, 30*time.Second, b.Timeout())
}

// ---- PrefixedToolName -----------------------------------------------------

func TestPrefixedToolName(t *testing.T) {
	assert.Equal(t, "gh__create_issue", model.PrefixedToolName("gh", "create_issue"))
}

// ---- Validation -----------------------------------------------------------

func TestValidateBackendName(t *testing.T) {
	assert.NoError(t, model.ValidateBackendName("github-tools_2"))
	assert.Error(t, model.ValidateBackendName(""), "empty name")
	assert.Error(t, model.ValidateBackendName("bad name"), "space")
	assert.Error(t, model.ValidateBackendName("a/b"), "slash")
	assert.NoError(t, model.ValidateBackendName(strings.Repeat("x", model.MaxBackendNameLen)))
	assert.Error(t, model.ValidateBackendName(strings.Repeat("x", model.MaxBackendNameLen+1)))
}

func TestValidateBackendURL(t *testing.T) {
	assert.NoError(t, model.ValidateBackendURL("http://localhost:9000/mcp"))
	assert.Error(t, model.ValidateBackendURL(""))
	assert.Error(t, model.ValidateBackendURL("http://x/"+strings.Repeat("y", model.MaxBackendURLLen)))
}

func TestValidatePrefix_EmptyIsValid(t *testing.T) {
	assert.NoError(t, model.ValidatePrefix(""))
	assert.Error(t, model.ValidatePrefix("has space"))
}

// ---- CreateBackendRequest -------------------------------------------------

func TestCreateBackendRequest_Defaults(t *testing.T) {
	req := model.CreateBackendRequest{Name: "fs", URL: "http://localhost:9001/mcp"}
	require.NoError(t, req.Validate())

	b := req.Backend()
	assert.True(t, b.Enabled)
	assert.True(t, b.MountEnabled)
	assert.Equal(t, model.DefaultTimeoutSeconds, b.TimeoutSeconds)
}

func TestCreateBackendRequest_ExplicitFields(t *testing.T) {
	req := model.CreateBackendRequest{
		Name:         "fs",
		URL:          "http://localhost:9001/mcp",
		Enabled:      ptr(false),
		Timeout:      ptr(5.0),
		Prefix:       "files",
		MountEnabled: ptr(false),
	}
	require.NoError(t, req.Validate())

	b := req.Backend()
	assert.False(t, b.Enabled)
	assert.False(t, b.MountEnabled)
	assert.Equal(t, 5.0, b.TimeoutSeconds)
	assert.Equal(t, "files", b.EffectivePrefix())
}

func TestCreateBackendRequest_RejectsNonPositiveTimeout(t *testing.T) {
	req := model.CreateBackendRequest{Name: "fs", URL: "http://x/mcp", Timeout: ptr(0.0)}
	assert.Error(t, req.Validate())
}

// ---- UpdateBackendRequest -------------------------------------------------

func TestUpdateBackendRequest_AppliesOnlyPresentFields(t *testing.T) {
	b := model.Backend{Name: "fs", URL: "http://old/mcp", Enabled: true, TimeoutSeconds: 30}

	upd := model.UpdateBackendRequest{URL: ptr("http://new/mcp"), Enabled: ptr(false)}
	require.NoError(t, upd.Validate())
	upd.Apply(&b)

	assert.Equal(t, "http://new/mcp", b.URL)
	assert.False(t, b.Enabled)
	assert.Equal(t, 30.0, b.TimeoutSeconds, "absent fields untouched")
	assert.Equal(t, "fs", b.Name)
}
