package net

import (
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	getty "github.com/AlexStocks/getty/transport"
	gxlog "github.com/AlexStocks/goext/log"
	gxnet "github.com/AlexStocks/goext/net"
	log "github.com/AlexStocks/log4go"
	gxsync "github.com/dubbogo/gost/sync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zhukovaskychina/xswap-engine/conf"
	"github.com/zhukovaskychina/xswap-engine/swap/frontcache"
	"github.com/zhukovaskychina/xswap-engine/swap/stats"
)

const (
	pprofPath   = "/debug/pprof/"
	metricsPath = "/metrics"
)

const logBanner = `
******************************************************************************************

  __   __  _____ __          __           _____
  \ \ / / / ____|\ \        / /    /\    |  __ \
   \ V / | (___   \ \  /\  / /    /  \   | |__) |
    > <   \___ \   \ \/  \/ /    / /\ \  |  ___/
   / . \  ____) |   \  /\  /    / ____ \ | |
  /_/ \_\|_____/     \/  \/    /_/    \_\|_|

******************************************************************************************
`

var (
	cachePkgHandler = NewCachePkgHandler()
)

// CacheServer hosts a compressed page cache for remote swap engines.
// 远端的换出页面通过getty会话存取这份缓存.
type CacheServer struct {
	conf       *conf.Cfg
	cache      *frontcache.CompressedCache
	handler    *CacheMessageHandler
	serverList []getty.Server
	taskPool   gxsync.GenericTaskPool
}

func NewCacheServer(cfg *conf.Cfg) (*CacheServer, error) {
	cache, err := frontcache.NewCompressedCache(cfg.CacheCodec, cfg.SwapPageSize, int64(cfg.CacheCapacity))
	if err != nil {
		return nil, err
	}
	return &CacheServer{
		conf:     cfg,
		cache:    cache,
		taskPool: gxsync.NewTaskPoolSimple(0),
	}, nil
}

// Cache exposes the page cache this server feeds from.
func (srv *CacheServer) Cache() *frontcache.CompressedCache {
	return srv.cache
}

// Start binds the listeners and returns. Serve is the blocking variant
// the daemon uses.
func (srv *CacheServer) Start() {
	initProfiling(srv.conf, stats.NewCacheCollector(srv.cache))
	srv.initServer(srv.conf)

	gxlog.CInfo(logBanner)
	gxlog.CInfo("%s starts successfull! its version=%s, its listen ends=%s:%d\n",
		srv.conf.AppName, getty.Version, srv.conf.BindAddress, srv.conf.Port)
	log.Info("%s starts successfull! its version=%s, its listen ends=%s:%d\n",
		srv.conf.AppName, getty.Version, srv.conf.BindAddress, srv.conf.Port)
}

// Serve runs the server until a termination signal arrives.
func (srv *CacheServer) Serve() {
	srv.Start()
	srv.initSignal()
}

func initProfiling(cfg *conf.Cfg, collectors ...prometheus.Collector) {
	if cfg.ProfilePort <= 0 {
		return
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors...)
	http.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	addr := gxnet.HostAddress(cfg.BindAddress, cfg.ProfilePort)
	log.Info("App Profiling startup on address{%v}", addr+pprofPath)
	go func() {
		log.Info(http.ListenAndServe(addr, nil))
	}()
}

func (srv *CacheServer) initServer(cfg *conf.Cfg) {
	var (
		addr     string
		portList []string
		server   getty.Server
	)

	srv.handler = NewCacheMessageHandler(cfg, srv.cache, srv.taskPool)
	portList = append(portList, strconv.Itoa(cfg.Port))
	if len(portList) == 0 {
		panic("portList is nil")
	}
	for _, port := range portList {
		addr = gxnet.HostAddress2(cfg.BindAddress, port)
		serverOpts := []getty.ServerOption{getty.WithLocalAddress(addr)}
		server = getty.NewTCPServer(serverOpts...)
		server.RunEventLoop(func(session getty.Session) error {
			return srv.newSession(session)
		})
		log.Debug("cache server bind addr{%s} ok!", addr)
		srv.serverList = append(srv.serverList, server)
	}
}

func (srv *CacheServer) newSession(session getty.Session) error {
	var (
		ok      bool
		tcpConn *net.TCPConn
	)
	param := srv.conf.CacheSessionParam

	if param.CompressEncoding {
		session.SetCompressType(getty.CompressZip)
	}
	if tcpConn, ok = session.Conn().(*net.TCPConn); !ok {
		panic(fmt.Sprintf("%s, session.conn{%#v} is not tcp connection\n", session.Stat(), session.Conn()))
	}
	tcpConn.SetNoDelay(param.TcpNoDelay)
	tcpConn.SetKeepAlive(param.TcpKeepAlive)
	if param.TcpKeepAlive {
		tcpConn.SetKeepAlivePeriod(param.KeepAlivePeriodDuration)
	}
	tcpConn.SetReadBuffer(param.TcpRBufSize)
	tcpConn.SetWriteBuffer(param.TcpWBufSize)

	session.SetName(param.SessionName)
	session.SetMaxMsgLen(param.MaxMsgLen)
	session.SetPkgHandler(cachePkgHandler)
	session.SetEventListener(srv.handler)
	session.SetWQLen(param.PkgWQSize)
	session.SetReadTimeout(param.TcpReadTimeoutDuration)
	session.SetWriteTimeout(param.TcpWriteTimeoutDuration)
	session.SetCronPeriod((int)(srv.conf.SessionTimeoutDuration / 1e6))
	session.SetWaitTime(param.WaitTimeoutDuration)
	log.Debug("cache server accepts new session:%s\n", session.Stat())
	return nil
}

func (srv *CacheServer) uninitServer() {
	for _, server := range srv.serverList {
		server.Close()
	}
	if srv.taskPool != nil {
		srv.taskPool.Close()
	}
}

// Stop closes the listeners and the worker pool. The daemon goes
// through initSignal instead.
func (srv *CacheServer) Stop() {
	srv.uninitServer()
}

func (srv *CacheServer) initSignal() {
	// signal.Notify的ch信道是阻塞的(signal.Notify不会阻塞发送信号), 需要设置缓冲
	signals := make(chan os.Signal, 1)
	// It is not possible to block SIGKILL or syscall.SIGSTOP
	signal.Notify(signals, os.Interrupt, os.Kill, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		sig := <-signals
		log.Info("get signal %s", sig.String())
		switch sig {
		case syscall.SIGHUP:
		// reload()
		default:
			go time.AfterFunc(srv.conf.FailFastTimeoutDuration, func() {
				log.Exit("app exit now by force...")
				log.Close()
			})

			// 要么fastFailTimeout时间内执行完毕下面的逻辑然后程序退出，要么执行上面的超时函数程序强行退出
			srv.uninitServer()
			log.Exit("app exit now...")
			log.Close()
			return
		}
	}
}
