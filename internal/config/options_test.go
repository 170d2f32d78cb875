package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mapLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestFromEnvReadsVariables(t *testing.T) {
	t.Parallel()

	o, err := FromEnv(mapLookup(map[string]string{
		EnvRepoURL:      "https://example.com/repo.git",
		EnvCloneDir:     " ./work ",
		EnvPollInterval: "250ms",
		EnvHTTPTimeout:  "5s",
		EnvPlain:        "true",
		EnvLogLevel:     "debug",
	}))
	require.NoError(t, err)
	require.Equal(t, "https://example.com/repo.git", o.RepoURL)
	require.Equal(t, "./work", o.CloneDir)
	require.Equal(t, 250*time.Millisecond, o.PollInterval)
	require.Equal(t, 5*time.Second, o.HTTPTimeout)
	require.True(t, o.Plain)
	require.Equal(t, "debug", o.LogLevel)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Parallel()

	_, err := FromEnv(mapLookup(map[string]string{EnvPollInterval: "soon"}))
	require.ErrorContains(t, err, EnvPollInterval)

	_, err = FromEnv(mapLookup(map[string]string{EnvPlain: "maybe"}))
	require.ErrorContains(t, err, EnvPlain)
}

func TestSetDefaults(t *testing.T) {
	t.Parallel()

	var o Options
	o.SetDefaults()
	require.Equal(t, "https://github.com/msgpack/msgpack-python.git", o.RepoURL)
	require.Equal(t, "./msgpack-python", o.CloneDir)
	require.Equal(t, "./patch.diff", o.PatchFile)
	require.Equal(t, "https://api.pylingual.io", o.APIEndpoint)
	require.Equal(t, time.Second, o.PollInterval)
	require.Equal(t, filepath.Join("msgpack-python", "msgpack", "_unpacker.pyx"), o.TargetPath())
	require.NoError(t, o.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{name: "bad endpoint", mutate: func(o *Options) { o.APIEndpoint = "ftp://example.com" }},
		{name: "absolute target", mutate: func(o *Options) { o.TargetFile = "/etc/passwd" }},
		{name: "blank clone dir", mutate: func(o *Options) { o.CloneDir = " " }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var o Options
			o.SetDefaults()
			tc.mutate(&o)
			require.Error(t, o.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("EDPATCH_TEST_DOTENV=loaded\n"), 0o644))
	t.Setenv("EDPATCH_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("EDPATCH_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "loaded", os.Getenv("EDPATCH_TEST_DOTENV"))
}
