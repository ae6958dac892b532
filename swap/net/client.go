package net

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	getty "github.com/AlexStocks/getty/transport"
	log "github.com/AlexStocks/log4go"
	"github.com/zhukovaskychina/xswap-engine/conf"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
)

var (
	ErrNoCacheSession = errors.New("no cache session available")
	ErrCacheTimeout   = errors.New("cache call timed out")
	ErrClientClosed   = errors.New("cache client is closed")
)

// RemoteCache hands front cache traffic to a cache server. It
// implements frontcache.FrontCache, so the write and read paths treat a
// remote cache daemon exactly like the in-process one: a declined store
// falls through to the backing store, a miss falls through to a device
// read.
//
// getty维护连接, 掉线后自动重连; 未连接期间所有调用都按miss处理.
type RemoteCache struct {
	cfg    *conf.Cfg
	client getty.Client

	rwlock   sync.RWMutex
	sessions map[getty.Session]struct{}

	seq     uint64
	mu      sync.Mutex
	pending map[uint64]chan *CachePackage

	done   chan struct{}
	closed int32
}

func NewRemoteCache(cfg *conf.Cfg) (*RemoteCache, error) {
	if cfg.CacheRemoteAddr == "" {
		return nil, errors.New("cache remote addr is empty")
	}

	rc := &RemoteCache{
		cfg:      cfg,
		sessions: make(map[getty.Session]struct{}),
		pending:  make(map[uint64]chan *CachePackage),
		done:     make(chan struct{}),
	}
	rc.client = getty.NewTCPClient(
		getty.WithServerAddress(cfg.CacheRemoteAddr),
		getty.WithConnectionNumber(1),
	)
	// RunEventLoop blocks until the pool is filled, dial in background
	go rc.client.RunEventLoop(rc.newSession)
	return rc, nil
}

func (rc *RemoteCache) newSession(session getty.Session) error {
	var (
		ok      bool
		tcpConn *net.TCPConn
	)
	param := rc.cfg.CacheSessionParam

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
	session.SetEventListener(rc)
	session.SetWQLen(param.PkgWQSize)
	session.SetReadTimeout(param.TcpReadTimeoutDuration)
	session.SetWriteTimeout(param.TcpWriteTimeoutDuration)
	session.SetCronPeriod((int)(rc.cfg.SessionTimeoutDuration / 1e6))
	session.SetWaitTime(param.WaitTimeoutDuration)
	return nil
}

func (rc *RemoteCache) OnOpen(session getty.Session) error {
	log.Info("cache session opened:%s", session.Stat())
	rc.rwlock.Lock()
	rc.sessions[session] = struct{}{}
	rc.rwlock.Unlock()
	return nil
}

func (rc *RemoteCache) OnClose(session getty.Session) {
	log.Info("cache session{%s} is closing......", session.Stat())
	rc.rwlock.Lock()
	delete(rc.sessions, session)
	rc.rwlock.Unlock()
}

func (rc *RemoteCache) OnError(session getty.Session, err error) {
	log.Warn("cache session{%s} got error{%v}, will be closed.", session.Stat(), err)
	rc.rwlock.Lock()
	delete(rc.sessions, session)
	rc.rwlock.Unlock()
}

func (rc *RemoteCache) OnCron(session getty.Session) {}

func (rc *RemoteCache) OnMessage(session getty.Session, pkg interface{}) {
	resp, ok := pkg.(*CachePackage)
	if !ok {
		log.Error("illegal package type:%T", pkg)
		return
	}

	rc.mu.Lock()
	ch, ok := rc.pending[resp.Header.Seq]
	if ok {
		delete(rc.pending, resp.Header.Seq)
	}
	rc.mu.Unlock()
	if !ok {
		// the caller already gave up on this seq
		log.Debug("drop unsolicited cache reply seq %d", resp.Header.Seq)
		return
	}
	ch <- resp
}

func (rc *RemoteCache) session() getty.Session {
	rc.rwlock.RLock()
	defer rc.rwlock.RUnlock()
	for s := range rc.sessions {
		if !s.IsClosed() {
			return s
		}
	}
	return nil
}

// waitAvailable picks a live session, waiting briefly while getty dials
// in the background.
func (rc *RemoteCache) waitAvailable(timeout time.Duration) getty.Session {
	deadline := time.Now().Add(timeout)
	for {
		if s := rc.session(); s != nil {
			return s
		}
		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-rc.done:
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (rc *RemoteCache) call(cmd byte, slot page.Slot, body []byte) (*CachePackage, error) {
	if atomic.LoadInt32(&rc.closed) != 0 {
		return nil, ErrClientClosed
	}
	session := rc.waitAvailable(rc.cfg.CacheRequestTimeoutDuration)
	if session == nil {
		return nil, ErrNoCacheSession
	}

	seq := atomic.AddUint64(&rc.seq, 1)
	ch := make(chan *CachePackage, 1)
	rc.mu.Lock()
	rc.pending[seq] = ch
	rc.mu.Unlock()

	req := NewCachePackage(cmd, seq, slot.Store, slot.Offset, body)
	if err := session.WritePkg(req, WritePkgTimeout); err != nil {
		rc.forget(seq)
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(rc.cfg.CacheRequestTimeoutDuration):
		rc.forget(seq)
		return nil, ErrCacheTimeout
	case <-rc.done:
		rc.forget(seq)
		return nil, ErrClientClosed
	}
}

func (rc *RemoteCache) forget(seq uint64) {
	rc.mu.Lock()
	delete(rc.pending, seq)
	rc.mu.Unlock()
}

// Store implements FrontCache. True means the server kept the content
// and the device write must be skipped.
func (rc *RemoteCache) Store(pg *page.Page) bool {
	if pg.IsCompound() {
		return false
	}
	resp, err := rc.call(CmdStore, pg.Slot(), pg.Data())
	if err != nil {
		log.Debug("remote cache store %s: %v", pg.Slot(), err)
		return false
	}
	return resp.Header.Command == RespStored
}

// Load implements FrontCache. On a hit the page is completed the way a
// finished device read would be: uptodate and unlocked. On a miss or
// any transport trouble the page is untouched and still locked.
func (rc *RemoteCache) Load(pg *page.Page) bool {
	if pg.IsCompound() {
		return false
	}
	resp, err := rc.call(CmdLoad, pg.Slot(), nil)
	if err != nil {
		log.Debug("remote cache load %s: %v", pg.Slot(), err)
		return false
	}
	if resp.Header.Command != RespHit || len(resp.Body) != len(pg.Data()) {
		return false
	}
	copy(pg.Data(), resp.Body)
	pg.SetUptodate()
	pg.Unlock()
	return true
}

// Invalidate implements FrontCache.
func (rc *RemoteCache) Invalidate(slot page.Slot) {
	if _, err := rc.call(CmdInvalidate, slot, nil); err != nil {
		log.Debug("remote cache invalidate %s: %v", slot, err)
	}
}

// Ping checks the server end to end.
func (rc *RemoteCache) Ping() error {
	resp, err := rc.call(CmdPing, page.Slot{}, nil)
	if err != nil {
		return err
	}
	if resp.Header.Command != RespOK {
		return fmt.Errorf("unexpected ping reply %#x", resp.Header.Command)
	}
	return nil
}

func (rc *RemoteCache) Close() {
	if !atomic.CompareAndSwapInt32(&rc.closed, 0, 1) {
		return
	}
	close(rc.done)
	rc.client.Close()
}
