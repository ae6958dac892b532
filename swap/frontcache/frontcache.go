package frontcache

import (
	"github.com/zhukovaskychina/xswap-engine/swap/page"
)

// FrontCache sits between the swap I/O path and the backing stores.
// 页面在落盘之前先经过这一层.
//
// Store offers an outgoing page. True means the cache took authoritative
// ownership of the content and the device write must be skipped; false
// means the caller writes through to the store. Store never touches page
// flags, the writeback bracket stays with the caller.
//
// Load asks for an incoming page. True means the cache filled the data
// and completed the page the way a finished device read would: uptodate
// set and the page lock released. On false the page is untouched and
// still locked.
//
// Invalidate drops whatever is held for a slot whose content became
// redundant.
type FrontCache interface {
	Store(pg *page.Page) bool
	Load(pg *page.Page) bool
	Invalidate(slot page.Slot)
}
