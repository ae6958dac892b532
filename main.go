package main

import (
	"flag"
	"fmt"

	"github.com/zhukovaskychina/xswap-engine/logger"

	"github.com/zhukovaskychina/xswap-engine/conf"
	"github.com/zhukovaskychina/xswap-engine/swap/net"
)

const help = `
******************************************************************************************

  __   __  _____ __          __           _____
  \ \ / / / ____|\ \        / /    /\    |  __ \
   \ V / | (___   \ \  /\  / /    /  \   | |__) |
    > <   \___ \   \ \/  \/ /    / /\ \  |  ___/
   / . \  ____) |   \  /\  /    / ____ \ | |
  /_/ \_\|_____/     \/  \/    /_/    \_\|_|

******************************************************************************************
*帮助:
*1. -- help
*2. -- configPath   指定xswap.ini配置文件
******************************************************************************************
`

func main() {
	fmt.Println("Starting XSwap Cache Server...")

	// 解析命令行参数
	fmt.Println("Parsing command line arguments...")
	var configPath string
	flag.StringVar(&configPath, "configPath", "", "配置文件路径")
	flag.Parse()

	args := &conf.CommandLineArgs{
		ConfigPath: configPath,
	}

	config := conf.NewCfg().Load(args)
	logger.Debugf("Config loaded: error_log=%s, info_log=%s\n", config.LogError, config.LogInfos)

	// 初始化日志
	logger.Info("Initializing logger...")
	logConfig := logger.LogConfig{
		ErrorLogPath: config.LogError,
		InfoLogPath:  config.LogInfos,
		LogLevel:     config.LogLevel,
	}

	if err := logger.InitLogger(logConfig); err != nil {
		logger.Debugf("Failed to initialize logger: %s\n", err.Error())
		panic("Failed to initialize logger: " + err.Error())
	}
	logger.Infof("Logger initialized successfully with level: %s", config.LogLevel)

	logger.Info("XSwap Cache Server starting...")
	cacheServer, err := net.NewCacheServer(config)
	if err != nil {
		logger.Fatalf("Failed to build cache server: %v", err)
	}
	logger.Infof("Hosting a %s page cache of %d bytes on %s:%d",
		config.CacheCodec, config.CacheCapacity, config.BindAddress, config.Port)
	cacheServer.Serve()
}
