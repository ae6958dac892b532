package conf

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadWithoutConfigFile(t *testing.T) {
	cfg := NewCfg().Load(&CommandLineArgs{ConfigPath: filepath.Join(t.TempDir(), "missing.ini")})

	assert.Equal(t, 3309, cfg.Port)
	assert.Equal(t, 4096, cfg.SwapPageSize)
	assert.Equal(t, 256, cfg.SwapRequestPool)
	assert.Equal(t, "snappy", cfg.CacheCodec)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 60*time.Second, cfg.SessionTimeoutDuration)
}

func TestLoadFromIniFile(t *testing.T) {
	iniBody := `
[swapd]
bind-address = 127.0.0.1
port = 4000
profile_port = 20080
datadir = /tmp/xswap-data
max_session_number = 32
session_timeout = 30s
fail_fast_timeout = 2s

[swap]
page_size = 8192
queue_depth = 64
queue_workers = 2
request_pool = 16
stores_manifest = /tmp/stores.toml

[cache]
enabled = true
codec = lz4
capacity = 1048576
remote_addr = 127.0.0.1:4001
request_timeout = 500ms

[session]
tcp_no_delay = true
keep_alive_period = 120s
tcp_read_timeout = 2s
tcp_write_timeout = 4s
wait_timeout = 3s
max_msg_len = 131072
session_name = unit-cache

[logs]
log_level = debug
`
	path := filepath.Join(t.TempDir(), "xswap.ini")
	assert.NoError(t, ioutil.WriteFile(path, []byte(iniBody), 0644))

	cfg := NewCfg().Load(&CommandLineArgs{ConfigPath: path})

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, 20080, cfg.ProfilePort)
	assert.Equal(t, "/tmp/xswap-data", cfg.DataDir)
	assert.Equal(t, 32, cfg.SessionNumber)
	assert.Equal(t, 30*time.Second, cfg.SessionTimeoutDuration)
	assert.Equal(t, 2*time.Second, cfg.FailFastTimeoutDuration)

	assert.Equal(t, 8192, cfg.SwapPageSize)
	assert.Equal(t, 64, cfg.SwapQueueDepth)
	assert.Equal(t, 2, cfg.SwapQueueWorkers)
	assert.Equal(t, 16, cfg.SwapRequestPool)
	assert.Equal(t, "/tmp/stores.toml", cfg.SwapStoresManifest)

	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, "lz4", cfg.CacheCodec)
	assert.Equal(t, 1048576, cfg.CacheCapacity)
	assert.Equal(t, "127.0.0.1:4001", cfg.CacheRemoteAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.CacheRequestTimeoutDuration)

	assert.Equal(t, 120*time.Second, cfg.CacheSessionParam.KeepAlivePeriodDuration)
	assert.Equal(t, 131072, cfg.CacheSessionParam.MaxMsgLen)
	assert.Equal(t, "unit-cache", cfg.CacheSessionParam.SessionName)

	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestInvalidValuesFallBack(t *testing.T) {
	iniBody := `
[swap]
page_size = 3000

[cache]
codec = zstd

[logs]
log_level = verbose
`
	path := filepath.Join(t.TempDir(), "xswap.ini")
	assert.NoError(t, ioutil.WriteFile(path, []byte(iniBody), 0644))

	cfg := NewCfg().Load(&CommandLineArgs{ConfigPath: path})

	assert.Equal(t, 4096, cfg.SwapPageSize)
	assert.Equal(t, "snappy", cfg.CacheCodec)
	assert.Equal(t, "info", cfg.LogLevel)
}
