package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/f2freport-api/internal/service"
	"github.com/noah-isme/f2freport-api/pkg/config"
)

func testConfig() (*config.Config, error) {
	return &config.Config{
		JWT: config.JWTConfig{Secret: "cli-secret"},
		Report: config.ReportConfig{
			TablePrefix:    "mdl_",
			NotSpecified:   "Not specified",
			Timezone:       "UTC",
			ViewCapability: "local/f2freport:viewreport",
		},
	}, nil
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	root.RemoveCommand(root.Commands()...)
	root.AddCommand(newCompileCommand(testConfig), newTokenCommand(testConfig))

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCompileCommandPrintsPlan(t *testing.T) {
	out, err := execute(t, "compile",
		"--location", "Lyon",
		"--dateto", "1000", "--datefrom", "2000",
		"--field", "city=3,venue=4,room=5",
		"--dates", "separate_dates_table",
		"--sort", "coursename", "--order", "desc",
		"--limit", "10")
	require.NoError(t, err)

	assert.Contains(t, out, "-- notice DATE_RANGE_INVERTED")
	assert.Contains(t, out, "-- shape: dates=separate_dates_table capacity=true field_table=true")
	assert.Contains(t, out, "ORDER BY coursename DESC, sessionid ASC LIMIT :limit OFFSET :offset;")
	assert.Contains(t, out, "SELECT COUNT(1) FROM mdl_facetoface f")
	assert.Contains(t, out, `location = "%lyon%"`)
	assert.Contains(t, out, "cityfieldid = 3")
	assert.Contains(t, out, "limit = 10")
	assert.NotContains(t, out, "unresolved fields")
}

func TestCompileCommandMissingFields(t *testing.T) {
	out, err := execute(t, "compile", "--field", "city=3")
	require.NoError(t, err)
	assert.Contains(t, out, "-- unresolved fields: room, venue")

	_, err = execute(t, "compile", "--field", "city=3", "--fail-on-missing-fields")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room")
}

func TestCompileCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "compile", "--dates", "weekly")
	assert.Error(t, err)

	_, err = execute(t, "compile", "--field", "city=abc")
	assert.Error(t, err)

	_, err = execute(t, "compile", "--sort", "password")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--user", "42", "--email", "ops@example.com")
	require.NoError(t, err)

	auth := service.NewAuthService(nil, service.AuthConfig{AccessTokenSecret: "cli-secret"})
	claims, err := auth.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.True(t, claims.HasCapability("local/f2freport:viewreport"))
}
