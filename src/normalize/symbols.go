// backend/src/normalize/symbols.go
package normalize

import (
	"regexp"
	"strings"
)

// descriptionTicker maps a security-description keyword to its ticker.
type descriptionTicker struct {
	keyword string
	ticker  string
}

// tdDescriptionTickers resolves tickers from free-text descriptions. TD
// exports carry no symbol column at all, so this table does the heavy
// lifting for them; other brokers only hit it when their symbol cell is
// blank or implausible. Order matters: first keyword match wins.
var tdDescriptionTickers = []descriptionTicker{
	{"VANGUARD 500", "VOO"},
	{"MICROSOFT", "MSFT"},
	{"BERKSHIRE", "BRK-B"},
	{"TESLA", "TSLA"},
	{"ALIBABA", "BABA"},
	{"VANGUARD FTSE CANADIAN HIGH", "VDY.TO"},
	{"ISHR S&PTSX CMP HI DV ETF", "XEI.TO"},
	{"ISHARES CORE MSCI EAFE", "XEF.TO"},
	{"ISHARES CORE MSCI EM", "XEC.TO"},
	{"ISHARES S&P/TSX 60", "XIU.TO"},
	{"CANADIAN IMPERIAL", "CM.TO"},
	{"TORONTO-DOMINION", "TD.TO"},
	{"WHITECAP RESOURCES", "WCP.TO"},
	{"AIR CANADA", "AC.TO"},
	{"VEREN INC", "WCP.TO"}, // Veren became Whitecap
}

var descriptionTickerTables = map[string][]descriptionTicker{
	"TD": tdDescriptionTickers,
}

// canadianTickers are TSX-listed tickers that broker exports often write
// without the .TO suffix; canonical form carries it.
var canadianTickers = map[string]bool{
	"VDY": true, "XEI": true, "XEF": true, "XEC": true, "XIU": true,
	"CM": true, "TD": true, "WCP": true, "CASH": true, "DLR": true,
	"XRE": true, "VCN": true, "VEE": true, "VIU": true, "VUN": true,
	"VAV": true,
}

var (
	unitsSuffixRe = regexp.MustCompile(`\s+UNITS?$`)
	etfSuffixRe   = regexp.MustCompile(`\s+ETF$`)
)

// A real ticker never exceeds this; longer strings are descriptions that
// leaked into the symbol column.
const maxPlausibleSymbolLen = 10

// Symbol collapses a broker-specific symbol spelling to its canonical
// ticker. Pure and total: every input, however malformed, yields a string.
// An empty result means the row carries no recognizable symbol and is
// filtered downstream.
func Symbol(rawSymbol, broker, description string) string {
	s := strings.ToUpper(strings.TrimSpace(rawSymbol))

	if (s == "" || s == "NAN" || len(s) > maxPlausibleSymbolLen) && description != "" {
		s = tickerFromDescription(broker, description)
	}
	if s == "" {
		return ""
	}

	s = unitsSuffixRe.ReplaceAllString(s, "")
	s = etfSuffixRe.ReplaceAllString(s, "")
	s = strings.TrimSuffix(s, ".TO")

	if canadianTickers[s] {
		return s + ".TO"
	}
	return s
}

func tickerFromDescription(broker, description string) string {
	table, ok := descriptionTickerTables[strings.ToUpper(broker)]
	if !ok {
		table = tdDescriptionTickers // shared fallback table
	}
	desc := strings.ToUpper(description)
	for _, m := range table {
		if strings.Contains(desc, m.keyword) {
			return m.ticker
		}
	}
	return ""
}
