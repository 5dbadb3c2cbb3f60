package saga

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/stockvaluation/backend/internal/contracts"
)

const (
	noDataMessage = "Could not find any data!"
	disclaimer    = "\nDisclaimer: this is solely for educational purposes and does not constitute as financial or investment advice!\n"
	issuePrefix   = "Encountered the following issue while retrieving the data: "
)

var (
	nearBandLow  = decimal.RequireFromString("0.9")
	nearBandHigh = decimal.RequireFromString("1.1")
	two          = decimal.NewFromInt(2)
)

// ExplainerFormatter renders a human-readable walkthrough of the report
type ExplainerFormatter struct{}

func (ExplainerFormatter) ContentType() string {
	return "text/plain; charset=utf-8"
}

func (ExplainerFormatter) Format(report *contracts.Report, errorMessage string) string {
	if report == nil {
		if strings.TrimSpace(errorMessage) == "" {
			return noDataMessage
		}
		return errorMessage
	}

	var sb strings.Builder
	price := decimal.Zero
	if report.DCF != nil {
		price = decimal.NewFromFloat(report.DCF.MarketPrice)
		writeDCF(&sb, report.Ticker, report.DCF)
	}
	if report.Summary != nil {
		writeSummary(&sb, report.Summary, price)
	}
	if report.Consensus != nil {
		writeConsensus(&sb, report.Consensus)
	}
	if sb.Len() > 0 {
		sb.WriteString(disclaimer)
	}
	if strings.TrimSpace(errorMessage) != "" {
		sb.WriteString(issuePrefix)
		sb.WriteString(errorMessage)
	}
	return sb.String()
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func writeDCF(sb *strings.Builder, ticker string, dcf *contracts.DiscountedCashFlow) {
	fmt.Fprintf(sb, "On %s the discounted cash flow valuation model for the ticker %s shows that the fair valuation per share is %s, while the current price per share is %s.\n",
		dcf.Date, ticker, money(dcf.FairValue), money(dcf.MarketPrice))

	fair := decimal.NewFromFloat(dcf.FairValue)
	price := decimal.NewFromFloat(dcf.MarketPrice)
	switch {
	case fair.GreaterThan(price):
		sb.WriteString("This means that the company seems to be undervalued on the stock market and may be considered a candidate to buy or hold.\n")
	case fair.LessThan(price):
		sb.WriteString("This means that the company seems to be overvalued on the stock market and may be considered a candidate to sell.\n")
	default:
		sb.WriteString("This means that the company seems to be fairly valued on the stock market and is neither a good candidate to sell or buy.\n")
	}
	sb.WriteString("It is advised to look for other valuation methods too, especially if the spread between the valuation price and the actual stock price is large.\n")
	sb.WriteString("Find out more about the discounted cash flow valuation here: https://www.investopedia.com/terms/d/dcf.asp\n\n")
}

func writeSummary(sb *strings.Builder, s *contracts.PriceTargetSummary, price decimal.Decimal) {
	fmt.Fprintf(sb, "Last month %d stock analysts made price target predictions about this stock, with an average price target of %s.\n",
		s.LastMonthCount, money(s.LastMonthAvg))
	fmt.Fprintf(sb, "Last quarter %d analysts made predictions with %s average price target!\n",
		s.LastQuarterCount, money(s.LastQuarterAvg))

	if !price.IsZero() {
		sb.WriteString(summaryMeaning(s, price))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// summaryMeaning compares the price to the mean of the two period averages;
// within ±10% counts as fairly priced
func summaryMeaning(s *contracts.PriceTargetSummary, price decimal.Decimal) string {
	avg := decimal.NewFromFloat(s.LastMonthAvg).Add(decimal.NewFromFloat(s.LastQuarterAvg)).Div(two)

	const prefix = "This suggests that analysts believe the stock price "
	switch {
	case avg.Mul(nearBandLow).LessThan(price) && price.LessThan(avg.Mul(nearBandHigh)):
		return prefix + "is very close to its fair value so holding or selling might be better options than buying."
	case avg.GreaterThan(price):
		return prefix + "has a potential to climb in the future, which makes it a candidate to buy and hold."
	default:
		return prefix + "may be overvalued and not a good candidate for buying."
	}
}

func writeConsensus(sb *strings.Builder, c *contracts.PriceTargetConsensus) {
	fmt.Fprintf(sb, "Overall, the highest projection from any analyst was %s, while the lowest was %s, with the consensus being around %s and the median prediction at %s.\n",
		money(c.High), money(c.Low), money(c.Consensus), money(c.Median))
	sb.WriteString("Price target predictions are the stock analysts own overall calculations for a price point where they think a stock would be fairly valued.\n")
	sb.WriteString("This is based on a number of factors, you can find out more about those at https://www.investopedia.com/investing/target-prices-and-sound-investing/\n\n")
}
