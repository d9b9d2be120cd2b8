package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/presale_portal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const priceSnapshotKey = "portal:prices"

// PriceService polls the exchange-rate feed and exposes the last-known
// table. A failed fetch keeps the previous table; subscribers are notified
// only on successful refreshes.
type PriceService struct {
	baseURL    string
	vsCurrency string
	interval   time.Duration
	client     *http.Client
	rdb        *redis.Client
	logger     *zap.Logger

	// catalog id -> feed coin id
	coinIDs map[string]string
	// catalog id -> symbol
	symbols map[string]string

	mu          sync.RWMutex
	table       model.PriceTable
	fetchedAt   time.Time
	fetching    bool
	seq         uint64
	appliedSeq  uint64
	subscribers map[chan model.PriceTable]struct{}
}

func NewPriceService(baseURL, vsCurrency string, interval time.Duration, catalog []model.CurrencyItem, coinIDs map[string]string, rdb *redis.Client, logger *zap.Logger) *PriceService {
	symbols := make(map[string]string, len(catalog))
	for _, item := range catalog {
		symbols[item.ID] = item.Symbol
	}
	return &PriceService{
		baseURL:     strings.TrimRight(baseURL, "/"),
		vsCurrency:  vsCurrency,
		interval:    interval,
		client:      &http.Client{Timeout: 10 * time.Second},
		rdb:         rdb,
		logger:      logger,
		coinIDs:     coinIDs,
		symbols:     symbols,
		subscribers: make(map[chan model.PriceTable]struct{}),
	}
}

// Run refreshes immediately, then on a fixed cadence until ctx is done.
func (s *PriceService) Run(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("initial price fetch failed", zap.Error(err))
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("price refresh failed, keeping last table", zap.Error(err))
			}
		}
	}
}

// Refresh pulls the feed once and replaces the table wholesale. Responses
// carry a sequence number so a slow in-flight fetch can never overwrite a
// fresher table.
func (s *PriceService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.fetching = true
	coinIDs := make(map[string]string, len(s.coinIDs))
	for id, cid := range s.coinIDs {
		coinIDs[id] = cid
	}
	symbols := make(map[string]string, len(s.symbols))
	for id, sym := range s.symbols {
		symbols[id] = sym
	}
	s.mu.Unlock()

	table, err := s.fetch(ctx, coinIDs, symbols)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false
	if err != nil {
		return err
	}
	if seq < s.appliedSeq {
		// a newer fetch already landed
		return nil
	}
	s.appliedSeq = seq
	s.table = table
	s.fetchedAt = time.Now()

	for ch := range s.subscribers {
		select {
		case ch <- table.Clone():
		default:
		}
	}

	s.cacheSnapshot(ctx, table)
	return nil
}

func (s *PriceService) fetch(ctx context.Context, coinIDs, symbols map[string]string) (model.PriceTable, error) {
	ids := make([]string, 0, len(coinIDs))
	seen := map[string]bool{}
	for _, coinID := range coinIDs {
		if !seen[coinID] {
			seen[coinID] = true
			ids = append(ids, coinID)
		}
	}
	sort.Strings(ids)

	reqURL := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		s.baseURL, url.QueryEscape(strings.Join(ids, ",")), url.QueryEscape(s.vsCurrency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var byCoin map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&byCoin); err != nil {
		return nil, fmt.Errorf("decode price feed response: %w", err)
	}

	table := make(model.PriceTable)
	for id, coinID := range coinIDs {
		rates, ok := byCoin[coinID]
		if !ok {
			continue
		}
		symbol := symbols[id]
		if symbol == "" {
			symbol = strings.ToUpper(id)
		}
		cp := make(map[string]float64, len(rates))
		for cur, v := range rates {
			cp[strings.ToLower(cur)] = v
		}
		table[symbol] = cp
	}
	return table, nil
}

func (s *PriceService) cacheSnapshot(ctx context.Context, table model.PriceTable) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(table)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, priceSnapshotKey, raw, 2*s.interval).Err(); err != nil {
		s.logger.Debug("price snapshot cache write failed", zap.Error(err))
	}
}

// SetCatalog swaps the token set the poller prices; the next refresh uses
// it. Called after catalog reloads so operator-added tokens get rates.
func (s *PriceService) SetCatalog(items []model.CurrencyItem, coinIDs map[string]string) {
	symbols := make(map[string]string, len(items))
	for _, item := range items {
		symbols[item.ID] = item.Symbol
	}
	s.mu.Lock()
	s.symbols = symbols
	s.coinIDs = coinIDs
	s.mu.Unlock()
}

// Price returns the USD rate for a token symbol, 0 when unknown.
func (s *PriceService) Price(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Rate(symbol, s.vsCurrency)
}

// Table returns a copy of the current table.
func (s *PriceService) Table() model.PriceTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Clone()
}

func (s *PriceService) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

func (s *PriceService) Fetching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetching
}

// NextRefreshIn is the countdown until the poller fires again, the value
// the portal displays next to the live price.
func (s *PriceService) NextRefreshIn() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fetchedAt.IsZero() {
		return 0
	}
	left := s.interval - time.Since(s.fetchedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Subscribe registers a listener for refreshed tables. Slow listeners drop
// updates rather than blocking the poller.
func (s *PriceService) Subscribe() chan model.PriceTable {
	ch := make(chan model.PriceTable, 1)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *PriceService) Unsubscribe(ch chan model.PriceTable) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
	close(ch)
}

// Interval exposes the refresh cadence for countdown displays.
func (s *PriceService) Interval() time.Duration {
	return s.interval
}
