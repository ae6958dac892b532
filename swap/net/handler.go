package net

import (
	"errors"
	"sync"
	"time"

	getty "github.com/AlexStocks/getty/transport"
	log "github.com/AlexStocks/log4go"
	gxsync "github.com/dubbogo/gost/sync"
	"github.com/zhukovaskychina/xswap-engine/conf"
	"github.com/zhukovaskychina/xswap-engine/swap/frontcache"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
)

const (
	WritePkgTimeout = 1e8
)

var (
	errTooManySessions = errors.New("Too many cache sessions!")
)

type clientPeer struct {
	created time.Time
}

// CacheMessageHandler serves remote front cache traffic. Each request
// package maps onto one cache call and one reply package.
type CacheMessageHandler struct {
	rwlock     sync.RWMutex
	cfg        *conf.Cfg
	cache      *frontcache.CompressedCache
	sessionMap map[getty.Session]*clientPeer
	taskPool   gxsync.GenericTaskPool
}

func NewCacheMessageHandler(cfg *conf.Cfg, cache *frontcache.CompressedCache, taskPool gxsync.GenericTaskPool) *CacheMessageHandler {
	var handler = new(CacheMessageHandler)
	handler.cfg = cfg
	handler.cache = cache
	handler.sessionMap = make(map[getty.Session]*clientPeer)
	handler.taskPool = taskPool
	return handler
}

func (m *CacheMessageHandler) OnOpen(session getty.Session) error {
	var (
		err error
	)

	m.rwlock.RLock()
	if m.cfg.SessionNumber <= len(m.sessionMap) {
		err = errTooManySessions
	}
	m.rwlock.RUnlock()
	if err != nil {
		return err
	}
	log.Info("got cache session:%s", session.Stat())
	m.rwlock.Lock()
	m.sessionMap[session] = &clientPeer{created: time.Now()}
	m.rwlock.Unlock()
	return nil
}

func (m *CacheMessageHandler) OnClose(session getty.Session) {
	log.Info("session{%s} is closing......", session.Stat())
	m.rwlock.Lock()
	delete(m.sessionMap, session)
	m.rwlock.Unlock()
}

func (m *CacheMessageHandler) OnError(session getty.Session, err error) {
	log.Warn("session{%s} got error{%v}, will be closed.", session.Stat(), err)
	m.rwlock.Lock()
	delete(m.sessionMap, session)
	m.rwlock.Unlock()
}

func (m *CacheMessageHandler) OnCron(session getty.Session) {
	active := session.GetActive()
	if m.cfg.SessionTimeoutDuration < time.Since(active) {
		log.Warn("session{%s} timeout{%s}", session.Stat(), time.Since(active).String())
		session.Close()
	}
}

func (m *CacheMessageHandler) OnMessage(session getty.Session, pkg interface{}) {
	reqPkg, ok := pkg.(*CachePackage)
	if !ok {
		log.Error("illegal package type:%T", pkg)
		return
	}

	if m.taskPool != nil {
		m.taskPool.AddTaskAlways(func() {
			m.handlePackage(session, reqPkg)
		})
		return
	}
	m.handlePackage(session, reqPkg)
}

func (m *CacheMessageHandler) handlePackage(session getty.Session, req *CachePackage) {
	reply := m.dispatch(req)
	if reply == nil {
		return
	}
	if err := session.WritePkg(reply, WritePkgTimeout); err != nil {
		log.Warn("session{%s} reply seq %d: %v", session.Stat(), req.Header.Seq, err)
	}
}

// dispatch 根据命令字处理请求
func (m *CacheMessageHandler) dispatch(req *CachePackage) *CachePackage {
	h := req.Header
	slot := page.Slot{Store: h.StoreID, Offset: h.Offset}
	switch h.Command {
	case CmdStore:
		if m.cache.StoreData(slot, req.Body) {
			return NewCachePackage(RespStored, h.Seq, h.StoreID, h.Offset, nil)
		}
		return NewCachePackage(RespDeclined, h.Seq, h.StoreID, h.Offset, nil)
	case CmdLoad:
		data := make([]byte, m.cfg.SwapPageSize)
		if m.cache.LoadData(slot, data) {
			return NewCachePackage(RespHit, h.Seq, h.StoreID, h.Offset, data)
		}
		return NewCachePackage(RespMiss, h.Seq, h.StoreID, h.Offset, nil)
	case CmdInvalidate:
		m.cache.Invalidate(slot)
		return NewCachePackage(RespOK, h.Seq, h.StoreID, h.Offset, nil)
	case CmdPing:
		return NewCachePackage(RespOK, h.Seq, h.StoreID, h.Offset, nil)
	default:
		log.Warn("unknown cache command %#x, seq %d", h.Command, h.Seq)
		return nil
	}
}

// SessionCount returns the number of connected clients.
func (m *CacheMessageHandler) SessionCount() int {
	m.rwlock.RLock()
	defer m.rwlock.RUnlock()
	return len(m.sessionMap)
}
