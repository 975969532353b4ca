package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milestonez/pkg/util"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenRoundTrip(t *testing.T) {
	out, err := run(t, "token", "42", "--secret", "s3cret")
	require.NoError(t, err)

	userID, err := util.ParseJWT(strings.TrimSpace(out), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "42", userID)
}

func TestTokenNeedsSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := run(t, "token", "42")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestGenerateRequiresUser(t *testing.T) {
	_, err := run(t, "generate", "A project")
	assert.ErrorContains(t, err, `"user"`)
}

func TestArgCounts(t *testing.T) {
	_, err := run(t, "get", "only-one")
	assert.Error(t, err)

	_, err = run(t, "list", "extra")
	assert.Error(t, err)
}
