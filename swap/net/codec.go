package net

import (
	"bytes"
	"errors"

	getty "github.com/AlexStocks/getty/transport"
	log "github.com/AlexStocks/log4go"
)

// CachePkgHandler packs and unpacks cache packages on a getty session.
type CachePkgHandler struct{}

func NewCachePkgHandler() *CachePkgHandler {
	return &CachePkgHandler{}
}

func (h *CachePkgHandler) Read(ss getty.Session, data []byte) (interface{}, int, error) {
	var pkg CachePackage

	buf := bytes.NewBuffer(data)
	pkgLen, err := pkg.Unmarshal(buf)
	if err != nil {
		if err == ErrNotEnoughStream {
			// 半包, 等待更多数据
			return nil, 0, nil
		}
		return nil, 0, err
	}

	return &pkg, pkgLen, nil
}

func (h *CachePkgHandler) Write(ss getty.Session, pkg interface{}) ([]byte, error) {
	cachePkg, ok := pkg.(*CachePackage)
	if !ok {
		log.Error("illegal pkg:%+v", pkg)
		return nil, errors.New("invalid cache package!")
	}

	buf, err := cachePkg.Marshal()
	if err != nil {
		log.Warn("marshal cache package %s: %v", cachePkg, err)
		return nil, err
	}

	return buf.Bytes(), nil
}
