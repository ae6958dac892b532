package net

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/zhukovaskychina/xswap-engine/util"
)

// 缓存协议包头布局, 小端序
//
//	[0:2)   magic
//	[2:3)   version
//	[3:4)   command
//	[4:12)  seq
//	[12:16) store id
//	[16:24) slot offset
//	[24:28) body length
//	[28:36) body xxhash
const (
	cacheMagic   uint16 = 0x5843
	cacheVersion byte   = 1

	CacheHeaderLen = 36

	// MaxCacheBody bounds a single package body. One page plus header
	// never comes close; anything larger is a broken or hostile peer.
	MaxCacheBody = 16 << 20
)

// 请求命令
const (
	CmdStore byte = iota + 1
	CmdLoad
	CmdInvalidate
	CmdPing
)

// 应答命令
const (
	RespStored byte = iota + 0x81
	RespDeclined
	RespHit
	RespMiss
	RespOK
)

var (
	ErrNotEnoughStream = errors.New("packet stream is not enough")
	ErrTooLargePackage = errors.New("package length is exceed the cache package's legal maximum length.")
	ErrIllegalMagic    = errors.New("package magic is not right.")
	ErrBodyChecksum    = errors.New("package body checksum mismatch.")
)

type CachePkgHeader struct {
	Magic    uint16
	Version  byte
	Command  byte
	Seq      uint64
	StoreID  uint32
	Offset   uint64
	BodyLen  uint32
	Checksum uint64
}

type CachePackage struct {
	Header CachePkgHeader
	Body   []byte
}

func NewCachePackage(cmd byte, seq uint64, store uint32, offset uint64, body []byte) *CachePackage {
	return &CachePackage{
		Header: CachePkgHeader{
			Magic:   cacheMagic,
			Version: cacheVersion,
			Command: cmd,
			Seq:     seq,
			StoreID: store,
			Offset:  offset,
		},
		Body: body,
	}
}

func (p CachePackage) String() string {
	return fmt.Sprintf("cache pkg{cmd:%#x, seq:%d, slot:%d:%d, len:%d}",
		p.Header.Command, p.Header.Seq, p.Header.StoreID, p.Header.Offset, len(p.Body))
}

func (p CachePackage) Marshal() (*bytes.Buffer, error) {
	if len(p.Body) > MaxCacheBody {
		return nil, ErrTooLargePackage
	}

	buff := make([]byte, 0, CacheHeaderLen+len(p.Body))
	buff = util.WriteUB2(buff, cacheMagic)
	buff = util.WriteByte(buff, cacheVersion)
	buff = util.WriteByte(buff, p.Header.Command)
	buff = util.WriteUB8(buff, p.Header.Seq)
	buff = util.WriteUB4(buff, p.Header.StoreID)
	buff = util.WriteUB8(buff, p.Header.Offset)
	buff = util.WriteUB4(buff, uint32(len(p.Body)))
	buff = util.WriteUB8(buff, util.HashCode(p.Body))
	buff = util.WriteBytes(buff, p.Body)

	return bytes.NewBuffer(buff), nil
}

func (p *CachePackage) Unmarshal(buf *bytes.Buffer) (int, error) {
	if buf.Len() < CacheHeaderLen {
		return 0, ErrNotEnoughStream
	}

	data := buf.Bytes()
	cursor, magic := util.ReadUB2(data, 0)
	cursor, version := util.ReadByte(data, cursor)
	if magic != cacheMagic || version != cacheVersion {
		return 0, ErrIllegalMagic
	}
	p.Header.Magic = magic
	p.Header.Version = version
	cursor, p.Header.Command = util.ReadByte(data, cursor)
	cursor, p.Header.Seq = util.ReadUB8(data, cursor)
	cursor, p.Header.StoreID = util.ReadUB4(data, cursor)
	cursor, p.Header.Offset = util.ReadUB8(data, cursor)
	cursor, p.Header.BodyLen = util.ReadUB4(data, cursor)
	_, p.Header.Checksum = util.ReadUB8(data, cursor)

	if p.Header.BodyLen > MaxCacheBody {
		return 0, ErrTooLargePackage
	}
	pkgLen := CacheHeaderLen + int(p.Header.BodyLen)
	if buf.Len() < pkgLen {
		return 0, ErrNotEnoughStream
	}

	body := data[CacheHeaderLen:pkgLen]
	if util.HashCode(body) != p.Header.Checksum {
		return 0, ErrBodyChecksum
	}
	// getty重用读缓冲区, body不能与其共享底层数组
	p.Body = make([]byte, len(body))
	copy(p.Body, body)

	return pkgLen, nil
}
