package cliconf

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPathsNonEmpty(t *testing.T) {
	paths := ConfigPaths()
	assert.NotEmpty(t, paths)
}

func TestBindViperBindsFlagsWithoutConfigFile(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	AddConfigFlag(cmd)
	AddLoggingFlags(cmd)
	cmd.Flags().String("port", "443", "port")

	v := viper.New()
	require.NoError(t, BindViper(cmd, v))
	assert.Equal(t, "443", v.GetString("port"))
}

func TestBindViperEnvOverridesFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	AddConfigFlag(cmd)
	cmd.Flags().String("log-level", "info", "level")

	t.Setenv(EnvPrefix+"_LOG-LEVEL", "debug")

	v := viper.New()
	require.NoError(t, BindViper(cmd, v))
	assert.Equal(t, "debug", v.GetString("log-level"))
}
