package pageio

import (
	"github.com/juju/errors"
	"github.com/zhukovaskychina/xswap-engine/swap/blockio"
	"github.com/zhukovaskychina/xswap-engine/swap/page"
	"github.com/zhukovaskychina/xswap-engine/swap/store"
)

// buildRequest resolves the page's slot to a device sector and fills a
// request from the store's bounded pool. The request covers the frame's
// whole byte range, compound frames transfer in one piece. An empty pool
// is backpressure: the caller restores the page state and reports
// ErrNoRequest instead of waiting.
func (self *PageIO) buildRequest(s *store.BackingStore, pg *page.Page, op blockio.Op, end blockio.CompletionFunc) (*blockio.Request, error) {
	sector, err := s.SlotSector(pg.Slot().Offset)
	if err != nil {
		return nil, errors.Trace(err)
	}
	req := s.Queue().AllocRequest()
	if req == nil {
		self.stats.CountRequestAllocFailure()
		return nil, errors.Trace(ErrNoRequest)
	}
	req.Op = op
	req.Sector = sector
	req.Data = pg.Data()
	req.Page = pg
	req.End = end
	return req, nil
}
