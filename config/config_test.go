package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitConfig(t *testing.T) {
	require.NoError(t, InitConfig("testdata/config.yaml"))

	zapConf := GetZapConf()
	require.Equal(t, "info", zapConf.Level)
	require.Equal(t, "[yaraft]", zapConf.Prefix)
	require.Equal(t, 3, zapConf.MaxAge)
	require.True(t, zapConf.ShowLine)

	raftConf := GetRaftConf()
	require.Equal(t, uint64(1048576), raftConf.MaxApplyEntsSize)
}

func TestInitConfigMissingFile(t *testing.T) {
	require.Error(t, InitConfig("testdata/no-such-file.yaml"))
}

func TestDefaultsWithoutInit(t *testing.T) {
	Conf = nil
	require.Equal(t, uint64(NoLimit), GetRaftConf().MaxApplyEntsSize)
	require.NotEmpty(t, GetZapConf().Director)
}
