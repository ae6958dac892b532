package conf

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhukovaskychina/xswap-engine/logger"

	"gopkg.in/ini.v1"
)

var ConfigPath string

type CommandLineArgs struct {
	ConfigPath string
}

/*
*
bind-address = 127.0.0.1
port         = 3309
datadir      = /var/lib/xswap
profile_port = 20080
*/
type Cfg struct {
	Raw         *ini.File
	BindAddress string
	Port        int
	DataDir     string
	AppName     string

	ProfilePort int

	// session
	SessionTimeout         string `default:"60s" yaml:"session_timeout" json:"session_timeout,omitempty"`
	SessionTimeoutDuration time.Duration
	SessionNumber          int `default:"1000" yaml:"session_number" json:"session_number,omitempty"`

	// app
	FailFastTimeout         string `default:"5s" yaml:"fail_fast_timeout" json:"fail_fast_timeout,omitempty"`
	FailFastTimeoutDuration time.Duration

	// logs
	LogError string `default:"/var/log/xswap/error.log" yaml:"log_error" json:"log_error,omitempty"`
	LogInfos string `default:"/var/log/xswap/xswap.log" yaml:"log_infos" json:"log_infos,omitempty"`
	LogLevel string `default:"info" yaml:"log_level" json:"log_level,omitempty"`

	// swap
	SwapPageSize       int    `default:"4096" yaml:"swap_page_size" json:"swap_page_size,omitempty"`
	SwapQueueDepth     int    `default:"128" yaml:"swap_queue_depth" json:"swap_queue_depth,omitempty"`
	SwapQueueWorkers   int    `default:"4" yaml:"swap_queue_workers" json:"swap_queue_workers,omitempty"`
	SwapRequestPool    int    `default:"256" yaml:"swap_request_pool" json:"swap_request_pool,omitempty"`
	SwapStoresManifest string `default:"conf/stores.toml" yaml:"swap_stores_manifest" json:"swap_stores_manifest,omitempty"`

	// cache
	CacheEnabled                bool   `default:"true" yaml:"cache_enabled" json:"cache_enabled,omitempty"`
	CacheCodec                  string `default:"snappy" yaml:"cache_codec" json:"cache_codec,omitempty"`
	CacheCapacity               int    `default:"67108864" yaml:"cache_capacity" json:"cache_capacity,omitempty"`
	CacheRemoteAddr             string `default:"" yaml:"cache_remote_addr" json:"cache_remote_addr,omitempty"`
	CacheRequestTimeout         string `default:"3s" yaml:"cache_request_timeout" json:"cache_request_timeout,omitempty"`
	CacheRequestTimeoutDuration time.Duration

	// session tcp parameters
	CacheSessionParam CacheSessionParam `required:"true" yaml:"getty_session_param" json:"getty_session_param,omitempty"`
}

type CacheSessionParam struct {
	CompressEncoding        bool   `default:"false" yaml:"compress_encoding" json:"compress_encoding,omitempty"`
	TcpNoDelay              bool   `default:"true" yaml:"tcp_no_delay" json:"tcp_no_delay,omitempty"`
	TcpKeepAlive            bool   `default:"true" yaml:"tcp_keep_alive" json:"tcp_keep_alive,omitempty"`
	KeepAlivePeriod         string `default:"180s" yaml:"keep_alive_period" json:"keep_alive_period,omitempty"`
	KeepAlivePeriodDuration time.Duration
	TcpRBufSize             int `default:"262144" yaml:"tcp_r_buf_size" json:"tcp_r_buf_size,omitempty"`
	TcpWBufSize             int `default:"65536" yaml:"tcp_w_buf_size" json:"tcp_w_buf_size,omitempty"`
	PkgRQSize               int `default:"1024" yaml:"pkg_rq_size" json:"pkg_rq_size,omitempty"`
	PkgWQSize               int `default:"1024" yaml:"pkg_wq_size" json:"pkg_wq_size,omitempty"`
	TcpReadTimeout          string `default:"1s" yaml:"tcp_read_timeout" json:"tcp_read_timeout,omitempty"`
	TcpReadTimeoutDuration  time.Duration
	TcpWriteTimeout         string `default:"5s" yaml:"tcp_write_timeout" json:"tcp_write_timeout,omitempty"`
	TcpWriteTimeoutDuration time.Duration
	WaitTimeout             string `default:"7s" yaml:"wait_timeout" json:"wait_timeout,omitempty"`
	WaitTimeoutDuration     time.Duration
	MaxMsgLen               int    `default:"65536" yaml:"max_msg_len" json:"max_msg_len,omitempty"`
	SessionName             string `default:"xswap-cache" yaml:"session_name" json:"session_name,omitempty"`
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:         ini.Empty(),
		AppName:     "xswap-server",
		BindAddress: "127.0.0.1",
		Port:        3309,
		DataDir:     "data",
		// Logs 默认配置
		LogError: "/var/log/xswap/error.log",
		LogInfos: "/var/log/xswap/xswap.log",
		LogLevel: "info",
		// Swap 默认配置
		SwapPageSize:       4096,
		SwapQueueDepth:     128,
		SwapQueueWorkers:   4,
		SwapRequestPool:    256,
		SwapStoresManifest: "conf/stores.toml",
		// Cache 默认配置
		CacheEnabled:                true,
		CacheCodec:                  "snappy",
		CacheCapacity:               67108864, // 64MB
		CacheRequestTimeout:         "3s",
		CacheRequestTimeoutDuration: 3 * time.Second,
		CacheSessionParam: CacheSessionParam{
			TcpNoDelay:              true,
			TcpKeepAlive:            true,
			KeepAlivePeriod:         "180s",
			KeepAlivePeriodDuration: 180 * time.Second,
			TcpRBufSize:             262144,
			TcpWBufSize:             65536,
			PkgRQSize:               1024,
			PkgWQSize:               1024,
			TcpReadTimeout:          "1s",
			TcpReadTimeoutDuration:  time.Second,
			TcpWriteTimeout:         "5s",
			TcpWriteTimeoutDuration: 5 * time.Second,
			WaitTimeout:             "7s",
			WaitTimeoutDuration:     7 * time.Second,
			MaxMsgLen:               65536,
			SessionName:             "xswap-cache",
		},
		SessionTimeout:          "60s",
		SessionTimeoutDuration:  60 * time.Second,
		SessionNumber:           1000,
		FailFastTimeout:         "5s",
		FailFastTimeoutDuration: 5 * time.Second,
	}
}

func (cfg *Cfg) Load(args *CommandLineArgs) *Cfg {
	setHomePath(args)
	iniFile, err := cfg.loadConfiguration(args)
	if err != nil {
		logger.Debugf("加载配置文件时有异常: %v\n", err)
		os.Exit(1)
	}
	cfg.Raw = iniFile

	cfg.parseSwapdCfg(cfg.Raw.Section("swapd"))
	cfg.parseSwapCfg(cfg.Raw.Section("swap"))
	cfg.parseCacheCfg(cfg.Raw.Section("cache"))
	cfg.parseSessionCfg(cfg.Raw.Section("session"))
	cfg.parseLogsCfg(cfg.Raw.Section("logs"))
	return cfg
}

func setHomePath(args *CommandLineArgs) {
	if args.ConfigPath != "" {
		ConfigPath = args.ConfigPath
		return
	}

	ConfigPath, _ = filepath.Abs(".")
}

func (cfg *Cfg) loadConfiguration(args *CommandLineArgs) (*ini.File, error) {
	// 如果没有指定配置文件路径，使用默认的conf/xswap.ini
	configFile := "conf/xswap.ini"
	if args.ConfigPath != "" {
		configFile = args.ConfigPath
	}

	// check if config file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		logger.Debugf("配置文件不存在: %s，使用默认配置\n", configFile)
		return ini.Empty(), nil
	}

	// load configuration file
	parsedFile, err := ini.Load(configFile)
	if err != nil {
		logger.Debugf("解析配置文件失败: %v，使用默认配置\n", err)
		return ini.Empty(), nil
	}

	logger.Debugf("成功加载配置文件: %s\n", configFile)
	return parsedFile, nil
}

func (cfg *Cfg) parseSwapdCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	bindAddress, err := valueAsString(section, "bind-address", cfg.BindAddress)
	if err == nil {
		ip := net.ParseIP(bindAddress)
		if ip == nil {
			logger.Error("IP地址异常", bindAddress)
			os.Exit(1)
		}
		cfg.BindAddress = bindAddress
	}

	cfg.Port = section.Key("port").MustInt(cfg.Port)
	cfg.ProfilePort = section.Key("profile_port").MustInt(0)

	dataDir, err := valueAsString(section, "datadir", cfg.DataDir)
	if err == nil {
		cfg.DataDir = dataDir
	}

	cfg.SessionNumber = section.Key("max_session_number").MustInt(cfg.SessionNumber)

	sessionTimeout, err := valueAsString(section, "session_timeout", cfg.SessionTimeout)
	if err == nil {
		cfg.SessionTimeout = sessionTimeout
		cfg.SessionTimeoutDuration, err = time.ParseDuration(sessionTimeout)
		if err != nil {
			panic(fmt.Sprintf("time.ParseDuration(SessionTimeout{%#v}) = error{%v}", cfg.SessionTimeout, err))
		}
	}

	failFastTimeout, err := valueAsString(section, "fail_fast_timeout", cfg.FailFastTimeout)
	if err == nil {
		cfg.FailFastTimeout = failFastTimeout
		cfg.FailFastTimeoutDuration, err = time.ParseDuration(failFastTimeout)
		if err != nil {
			panic(fmt.Sprintf("time.ParseDuration(FailFastTimeout{%#v}) = error{%v}", cfg.FailFastTimeout, err))
		}
	}

	return cfg
}

func (cfg *Cfg) parseSwapCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	// Parse page size
	pageSize := section.Key("page_size").MustInt(cfg.SwapPageSize)
	if pageSize < 512 || pageSize&(pageSize-1) != 0 {
		logger.Debugf("警告: 无效的页大小 %d, 使用默认值 %d\n", pageSize, cfg.SwapPageSize)
	} else {
		cfg.SwapPageSize = pageSize
	}

	// Parse queue depth
	queueDepth := section.Key("queue_depth").MustInt(cfg.SwapQueueDepth)
	cfg.SwapQueueDepth = queueDepth

	// Parse queue workers
	queueWorkers := section.Key("queue_workers").MustInt(cfg.SwapQueueWorkers)
	cfg.SwapQueueWorkers = queueWorkers

	// Parse request pool
	requestPool := section.Key("request_pool").MustInt(cfg.SwapRequestPool)
	cfg.SwapRequestPool = requestPool

	// Parse stores manifest
	storesManifest, err := valueAsString(section, "stores_manifest", cfg.SwapStoresManifest)
	if err == nil {
		cfg.SwapStoresManifest = storesManifest
	}

	return cfg
}

func (cfg *Cfg) parseCacheCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	enabled := section.Key("enabled").MustBool(cfg.CacheEnabled)
	cfg.CacheEnabled = enabled

	codec, err := valueAsString(section, "codec", cfg.CacheCodec)
	if err == nil {
		codec = strings.ToLower(codec)
		validCodecs := []string{"snappy", "lz4"}
		isValid := false
		for _, c := range validCodecs {
			if codec == c {
				isValid = true
				break
			}
		}
		if !isValid {
			logger.Debugf("警告: 无效的压缩编码 '%s', 使用默认编码 'snappy'\n", codec)
			codec = "snappy"
		}
		cfg.CacheCodec = codec
	}

	capacity := section.Key("capacity").MustInt(cfg.CacheCapacity)
	cfg.CacheCapacity = capacity

	remoteAddr, err := valueAsString(section, "remote_addr", cfg.CacheRemoteAddr)
	if err == nil {
		cfg.CacheRemoteAddr = remoteAddr
	}

	requestTimeout, err := valueAsString(section, "request_timeout", cfg.CacheRequestTimeout)
	if err == nil {
		cfg.CacheRequestTimeout = requestTimeout
		cfg.CacheRequestTimeoutDuration, err = time.ParseDuration(requestTimeout)
		if err != nil {
			panic(fmt.Sprintf("time.ParseDuration(CacheRequestTimeout{%#v}) = error{%v}", cfg.CacheRequestTimeout, err))
		}
	}

	return cfg
}

func (cfg *Cfg) parseSessionCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	var err error
	param := &cfg.CacheSessionParam

	param.CompressEncoding = section.Key("compress_encoding").MustBool(param.CompressEncoding)
	param.TcpNoDelay = section.Key("tcp_no_delay").MustBool(param.TcpNoDelay)
	param.TcpKeepAlive = section.Key("tcp_keep_alive").MustBool(param.TcpKeepAlive)

	keepAlivePeriod, _ := valueAsString(section, "keep_alive_period", param.KeepAlivePeriod)
	param.KeepAlivePeriod = keepAlivePeriod
	param.KeepAlivePeriodDuration, err = time.ParseDuration(keepAlivePeriod)
	if err != nil {
		panic(fmt.Sprintf("time.ParseDuration(KeepAlivePeriod{%#v}) = error{%v}", param.KeepAlivePeriod, err))
	}

	param.TcpRBufSize = section.Key("tcp_r_buf_size").MustInt(param.TcpRBufSize)
	param.TcpWBufSize = section.Key("tcp_w_buf_size").MustInt(param.TcpWBufSize)
	param.PkgRQSize = section.Key("pkg_rq_size").MustInt(param.PkgRQSize)
	param.PkgWQSize = section.Key("pkg_wq_size").MustInt(param.PkgWQSize)

	tcpReadTimeout, _ := valueAsString(section, "tcp_read_timeout", param.TcpReadTimeout)
	param.TcpReadTimeout = tcpReadTimeout
	param.TcpReadTimeoutDuration, err = time.ParseDuration(tcpReadTimeout)
	if err != nil {
		panic(fmt.Sprintf("time.ParseDuration(TcpReadTimeout{%#v}) = error{%v}", param.TcpReadTimeout, err))
	}

	tcpWriteTimeout, _ := valueAsString(section, "tcp_write_timeout", param.TcpWriteTimeout)
	param.TcpWriteTimeout = tcpWriteTimeout
	param.TcpWriteTimeoutDuration, err = time.ParseDuration(tcpWriteTimeout)
	if err != nil {
		panic(fmt.Sprintf("time.ParseDuration(TcpWriteTimeout{%#v}) = error{%v}", param.TcpWriteTimeout, err))
	}

	waitTimeout, _ := valueAsString(section, "wait_timeout", param.WaitTimeout)
	param.WaitTimeout = waitTimeout
	param.WaitTimeoutDuration, err = time.ParseDuration(waitTimeout)
	if err != nil {
		panic(fmt.Sprintf("time.ParseDuration(WaitTimeout{%#v}) = error{%v}", param.WaitTimeout, err))
	}

	param.MaxMsgLen = section.Key("max_msg_len").MustInt(param.MaxMsgLen)

	sessionName, _ := valueAsString(section, "session_name", param.SessionName)
	param.SessionName = sessionName

	return cfg
}

func (cfg *Cfg) parseLogsCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	// Parse log error
	logError, err := valueAsString(section, "log_error", cfg.LogError)
	if err == nil {
		cfg.LogError = logError
	}

	// Parse log infos
	logInfos, err := valueAsString(section, "log_infos", cfg.LogInfos)
	if err == nil {
		cfg.LogInfos = logInfos
	}

	// Parse log level
	logLevel, err := valueAsString(section, "log_level", cfg.LogLevel)
	if err == nil {
		cfg.LogLevel = strings.ToLower(logLevel)
		validLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
		isValid := false
		for _, level := range validLevels {
			if cfg.LogLevel == level {
				isValid = true
				break
			}
		}
		if !isValid {
			logger.Debugf("警告: 无效的日志级别 '%s', 使用默认级别 'info'\n", logLevel)
			cfg.LogLevel = "info"
		}
	}

	return cfg
}

func valueAsString(section *ini.Section, keyName string, defaultValue string) (value string, err error) {
	if section == nil {
		return defaultValue, nil
	}
	value = section.Key(keyName).MustString(defaultValue)
	if value == "" {
		value = defaultValue
	}
	return value, nil
}
