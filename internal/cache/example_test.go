package cache_test

import (
	"fmt"

	"github.com/wonny/stockvaluation/backend/internal/cache"
	"github.com/wonny/stockvaluation/backend/internal/contracts"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// Example_firstWriteWins shows that a filled slot is never replaced
func Example_firstWriteWins() {
	c := cache.NewUnbounded(4, logger.Nop())

	c.PutDCF("AAPL", &contracts.DiscountedCashFlow{Ticker: "AAPL", Date: "2024-01-02", FairValue: 150, MarketPrice: 185})
	c.PutDCF("AAPL", &contracts.DiscountedCashFlow{Ticker: "AAPL", Date: "2024-01-03", FairValue: 1, MarketPrice: 1})
	c.PutSummary("AAPL", &contracts.PriceTargetSummary{Ticker: "AAPL", LastMonthCount: 3, LastMonthAvg: 200})

	report := c.Get("AAPL")
	fmt.Println(report.DCF.Date, report.PresentCount(), report.Missing())
	// Output:
	// 2024-01-02 2 [consensus]
}

// Example_lfu shows an eviction pass trimming the rarest tickers
func Example_lfu() {
	c := cache.NewLFU(cache.LFUOptions{Capacity: 1, RebalanceThreshold: 1000}, logger.Nop())

	for _, ticker := range []string{"AAPL", "MSFT"} {
		c.PutDCF(ticker, &contracts.DiscountedCashFlow{Ticker: ticker, Date: "2024-01-02"})
	}
	c.Get("AAPL")

	evicted := c.RunEviction()
	fmt.Println(evicted, c.Get("MSFT") == nil, c.Get("AAPL") != nil)
	// Output:
	// 1 true true
}
