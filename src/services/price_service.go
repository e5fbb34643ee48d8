// backend/src/services/price_service.go
package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/publicsuffix"

	"github.com/mingli/holding-analyzer/backend/src/config"
	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
)

const yahooUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			Currency                   string  `json:"currency"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// priceServiceImpl fetches quotes from Yahoo Finance. The holdings use
// Yahoo-compatible tickers already (the .TO suffix convention), so no
// symbol search step is needed. Yahoo's quote endpoint wants a session
// cookie and a crumb.
type priceServiceImpl struct {
	httpClient http.Client
	crumb      string
}

// NewPriceService returns the Yahoo-backed service, or a no-op one when
// price lookup is disabled in the configuration.
func NewPriceService() PriceService {
	if config.Cfg != nil && !config.Cfg.PriceLookupEnabled {
		logger.L.Info("Price lookup disabled; quotes will be empty")
		return &disabledPriceService{}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	s := &priceServiceImpl{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: 20 * time.Second,
		},
	}

	if err := s.initializeYahooSession(); err != nil {
		logger.L.Error("Failed to initialize Yahoo Finance session. Price fetching may fail.", "error", err)
	}
	return s
}

// initializeYahooSession visits a Yahoo Finance page to get necessary
// cookies and the crumb.
func (s *priceServiceImpl) initializeYahooSession() error {
	logger.L.Info("Initializing Yahoo Finance session to get crumb and cookies...")
	req, err := http.NewRequest("GET", "https://finance.yahoo.com/quote/XIU.TO", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make initial request to Yahoo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Yahoo response body: %w", err)
	}

	re := regexp.MustCompile(`"CrumbStore":{"crumb":"(.*?)"}`)
	matches := re.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return fmt.Errorf("could not find crumb in Yahoo Finance response. The page structure may have changed")
	}

	s.crumb = matches[1]
	logger.L.Info("Successfully obtained Yahoo Finance crumb.")
	return nil
}

// GetQuotes fetches current quotes for the given symbols in one batched
// request. Symbols Yahoo does not recognize are absent from the result.
func (s *priceServiceImpl) GetQuotes(symbols []string) map[string]models.Quote {
	result := make(map[string]models.Quote)
	if len(symbols) == 0 {
		return result
	}

	if s.crumb == "" {
		logger.L.Warn("Yahoo crumb is missing, attempting to re-initialize session.")
		if err := s.initializeYahooSession(); err != nil {
			logger.L.Error("Failed to re-initialize Yahoo session", "error", err)
			return result
		}
	}

	quoteURL := fmt.Sprintf("https://query2.finance.yahoo.com/v7/finance/quote?symbols=%s&crumb=%s",
		strings.Join(symbols, ","), s.crumb)
	req, err := http.NewRequest("GET", quoteURL, nil)
	if err != nil {
		logger.L.Error("Failed to build Yahoo quote request", "error", err)
		return result
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.L.Error("Failed to call Yahoo quote API", "error", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		logger.L.Error("Yahoo quote API returned non-OK status",
			"status", resp.StatusCode, "body", string(bodyBytes))
		return result
	}

	var quoteData yahooQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteData); err != nil {
		logger.L.Error("Failed to decode Yahoo quote response", "error", err)
		return result
	}
	if quoteData.QuoteResponse.Error != nil {
		logger.L.Error("Yahoo quote API returned an error payload",
			"error", quoteData.QuoteResponse.Error)
		return result
	}

	for _, q := range quoteData.QuoteResponse.Result {
		result[q.Symbol] = models.Quote{
			Symbol:    q.Symbol,
			Price:     decimal.NewFromFloat(q.RegularMarketPrice),
			Currency:  strings.ToUpper(q.Currency),
			ChangePct: decimal.NewFromFloat(q.RegularMarketChangePercent),
		}
	}
	logger.L.Info("Fetched quotes from Yahoo", "requested", len(symbols), "returned", len(result))
	return result
}

// disabledPriceService satisfies PriceService when quote fetching is
// switched off; holdings then render without market values.
type disabledPriceService struct{}

func (d *disabledPriceService) GetQuotes(symbols []string) map[string]models.Quote {
	return map[string]models.Quote{}
}
