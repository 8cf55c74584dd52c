package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/R3E-Network/ordzaar/internal/app/cache"
	"github.com/R3E-Network/ordzaar/internal/app/domain"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/domain/transaction"
	"github.com/R3E-Network/ordzaar/internal/app/events"
	"github.com/R3E-Network/ordzaar/internal/app/metrics"
	"github.com/R3E-Network/ordzaar/internal/app/services/wallet"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

const (
	statsKey        = "market:stats"
	DefaultStatsTTL = 5 * time.Minute
	defaultLimit    = 10
	maxLimit        = 100
)

// Wallet is the placeholder wallet flow used to mint and buy.
type Wallet interface {
	Connect(provider, address string) (wallet.Session, error)
	Mint(ctx context.Context, session wallet.Session, ord ordinal.Ordinal) (string, error)
	Purchase(ctx context.Context, session wallet.Session, ord ordinal.Ordinal, price float64) (string, error)
}

// Stats summarises marketplace activity. Prices are decimal BTC.
type Stats struct {
	TotalVolume    float64   `json:"totalVolume"`
	DailyVolume    float64   `json:"dailyVolume"`
	TotalSales     int       `json:"totalSales"`
	DailySales     int       `json:"dailySales"`
	FloorPrice     string    `json:"floorPrice"`
	AveragePrice   string    `json:"averagePrice"`
	TotalListings  int       `json:"totalListings"`
	ActiveListings int       `json:"activeListings"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Request identifies the ordinal and wallet of a mint or purchase.
type Request struct {
	OrdinalID string
	Provider  string
	Address   string
}

// Result is returned by Mint and Buy.
type Result struct {
	Ordinal     ordinal.Ordinal         `json:"ordinal"`
	Transaction transaction.Transaction `json:"transaction"`
}

// Service implements minting, buying and marketplace analytics.
type Service struct {
	ordinals     storage.OrdinalStore
	collections  storage.CollectionStore
	transactions storage.TransactionStore
	wallet       Wallet
	cache        cache.Cache
	statsTTL     time.Duration
	events       events.Publisher
	log          *logger.Logger
	now          func() time.Time
}

// New constructs a marketplace service. A nil cache falls back to an
// in-process one.
func New(ordinals storage.OrdinalStore, collections storage.CollectionStore, transactions storage.TransactionStore, w Wallet, c cache.Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("marketplace")
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &Service{
		ordinals:     ordinals,
		collections:  collections,
		transactions: transactions,
		wallet:       w,
		cache:        c,
		statsTTL:     DefaultStatsTTL,
		events:       events.Nop{},
		log:          log,
		now:          time.Now,
	}
}

// AttachPublisher wires the event sink.
func (s *Service) AttachPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.events = p
}

// SetStatsTTL overrides how long computed statistics stay cached.
func (s *Service) SetStatsTTL(ttl time.Duration) {
	if ttl > 0 {
		s.statsTTL = ttl
	}
}

func (s *Service) getOrdinal(ctx context.Context, id string) (ordinal.Ordinal, error) {
	if !domain.ValidID(id) {
		return ordinal.Ordinal{}, apperrors.BadRequest("Invalid ordinal ID")
	}
	ord, err := s.ordinals.GetOrdinal(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ordinal.Ordinal{}, apperrors.NotFound("Ordinal not found")
		}
		return ordinal.Ordinal{}, fmt.Errorf("get ordinal %s: %w", id, err)
	}
	return ord, nil
}

// Mint inscribes a pending ordinal for the requesting wallet, which becomes
// its owner.
func (s *Service) Mint(ctx context.Context, req Request) (Result, error) {
	ord, err := s.getOrdinal(ctx, strings.TrimSpace(req.OrdinalID))
	if err != nil {
		return Result{}, err
	}
	if ord.Status != ordinal.StatusPending {
		return Result{}, apperrors.BadRequest("Ordinal has already been minted").WithDetails("status", ord.Status)
	}
	session, err := s.wallet.Connect(req.Provider, req.Address)
	if err != nil {
		return Result{}, err
	}

	txid, err := s.wallet.Mint(ctx, session, ord)
	metrics.RecordMarketplaceOperation("mint", err == nil)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	creator := ord.Owner
	ord.Status = ordinal.StatusMinted
	ord.Owner = session.Address
	ord.MintedAt = &now
	ord.BlockchainData = &ordinal.BlockchainData{
		TxID:          txid,
		InscriptionID: txid + "i0",
		ContentType:   contentTypeOf(ord.Image),
		Address:       session.Address,
	}
	ord, err = s.ordinals.UpdateOrdinal(ctx, ord)
	if err != nil {
		return Result{}, fmt.Errorf("record mint of ordinal %s: %w", ord.ID, err)
	}

	if err := s.updateCollection(ctx, ord.CollectionID, func(col *collection.Collection) {
		col.Minted++
	}); err != nil {
		s.log.WithError(err).WithField("collection_id", ord.CollectionID).Warn("increment minted count")
	}

	tx, err := s.transactions.CreateTransaction(ctx, transaction.Transaction{
		TxID:         txid,
		Type:         transaction.TypeMint,
		Status:       transaction.StatusConfirmed,
		From:         creator,
		To:           session.Address,
		Amount:       ord.Price,
		OrdinalID:    ord.ID,
		CollectionID: ord.CollectionID,
		Timestamp:    now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("record mint transaction: %w", err)
	}

	s.log.WithField("ordinal_id", ord.ID).
		WithField("txid", txid).
		WithField("address", session.Address).
		Info("ordinal minted")
	s.events.Publish(events.OrdinalMinted, ord)
	s.invalidateStats(ctx)
	return Result{Ordinal: ord, Transaction: tx}, nil
}

// Buy transfers a listed ordinal to the requesting wallet.
func (s *Service) Buy(ctx context.Context, req Request) (Result, error) {
	ord, err := s.getOrdinal(ctx, strings.TrimSpace(req.OrdinalID))
	if err != nil {
		return Result{}, err
	}
	if !ord.Listed {
		return Result{}, apperrors.BadRequest("Ordinal is not listed for sale")
	}
	buyer := strings.TrimSpace(req.Address)
	if buyer != "" && buyer == ord.Owner {
		return Result{}, apperrors.BadRequest("You already own this ordinal")
	}
	price, err := domain.ParsePrice(ord.ListPrice)
	if err != nil {
		return Result{}, fmt.Errorf("ordinal %s has invalid list price %q: %w", ord.ID, ord.ListPrice, err)
	}
	session, err := s.wallet.Connect(req.Provider, buyer)
	if err != nil {
		return Result{}, err
	}

	txid, err := s.wallet.Purchase(ctx, session, ord, price)
	metrics.RecordMarketplaceOperation("purchase", err == nil)
	if err != nil {
		return Result{}, err
	}

	seller := ord.Owner
	amount := ord.ListPrice
	ord.Owner = session.Address
	ord.Price = amount
	ord.Listed = false
	ord.ListPrice = ""
	ord, err = s.ordinals.UpdateOrdinal(ctx, ord)
	if err != nil {
		return Result{}, fmt.Errorf("transfer ordinal %s: %w", ord.ID, err)
	}

	if err := s.updateCollection(ctx, ord.CollectionID, func(col *collection.Collection) {
		col.Stats.Volume = roundBTC(col.Stats.Volume + price)
		col.Stats.Sales++
	}); err != nil {
		s.log.WithError(err).WithField("collection_id", ord.CollectionID).Warn("update collection sale stats")
	}

	tx, err := s.transactions.CreateTransaction(ctx, transaction.Transaction{
		TxID:         txid,
		Type:         transaction.TypeSale,
		Status:       transaction.StatusConfirmed,
		From:         seller,
		To:           session.Address,
		Amount:       amount,
		OrdinalID:    ord.ID,
		CollectionID: ord.CollectionID,
		Timestamp:    s.now().UTC(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("record sale transaction: %w", err)
	}

	metrics.RecordSale(price)
	s.log.WithField("ordinal_id", ord.ID).
		WithField("txid", txid).
		WithField("price", amount).
		Info("ordinal sold")
	s.events.Publish(events.OrdinalSold, tx)
	s.invalidateStats(ctx)
	return Result{Ordinal: ord, Transaction: tx}, nil
}

func (s *Service) updateCollection(ctx context.Context, id string, mutate func(*collection.Collection)) error {
	if id == "" {
		return nil
	}
	col, err := s.collections.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	mutate(&col)
	_, err = s.collections.UpdateCollection(ctx, col)
	return err
}

// Stats returns cached statistics, computing them on a miss.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	raw, ok, err := s.cache.Get(ctx, statsKey)
	if err != nil {
		s.log.WithError(err).Warn("read market stats cache")
	}
	if ok {
		var stats Stats
		if err := json.Unmarshal(raw, &stats); err == nil {
			return stats, nil
		}
	}
	return s.RefreshStats(ctx)
}

// RefreshStats recomputes statistics and stores them in the cache.
func (s *Service) RefreshStats(ctx context.Context) (Stats, error) {
	start := time.Now()
	stats, err := s.computeStats(ctx)
	metrics.RecordStatsRefresh(time.Since(start), err == nil)
	if err != nil {
		return Stats{}, err
	}
	if raw, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, statsKey, raw, s.statsTTL); err != nil {
			s.log.WithError(err).Warn("write market stats cache")
		}
	}
	return stats, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.cache.Delete(ctx, statsKey); err != nil {
		s.log.WithError(err).Warn("invalidate market stats cache")
	}
}

func (s *Service) computeStats(ctx context.Context) (Stats, error) {
	now := s.now().UTC()
	sales, err := s.transactions.ListTransactions(ctx, transaction.Filter{Type: transaction.TypeSale})
	if err != nil {
		return Stats{}, fmt.Errorf("list sales: %w", err)
	}

	stats := Stats{FloorPrice: "0", AveragePrice: "0", UpdatedAt: now}
	dayAgo := now.Add(-24 * time.Hour)
	for _, tx := range sales {
		amount, err := domain.ParsePrice(tx.Amount)
		if err != nil {
			continue
		}
		stats.TotalVolume += amount
		stats.TotalSales++
		if !tx.Timestamp.Before(dayAgo) {
			stats.DailyVolume += amount
			stats.DailySales++
		}
	}
	stats.TotalVolume = roundBTC(stats.TotalVolume)
	stats.DailyVolume = roundBTC(stats.DailyVolume)
	if stats.TotalSales > 0 {
		stats.AveragePrice = domain.FormatPrice(roundBTC(stats.TotalVolume / float64(stats.TotalSales)))
	}

	listed := true
	active, activeCount, err := s.ordinals.ListOrdinals(ctx, ordinal.Filter{Listed: &listed})
	if err != nil {
		return Stats{}, fmt.Errorf("list active listings: %w", err)
	}
	stats.ActiveListings = activeCount
	floor := math.Inf(1)
	for _, ord := range active {
		if p, err := domain.ParsePrice(ord.ListPrice); err == nil && p < floor {
			floor = p
		}
	}
	if !math.IsInf(floor, 1) {
		stats.FloorPrice = domain.FormatPrice(floor)
	}

	_, total, err := s.ordinals.ListOrdinals(ctx, ordinal.Filter{Limit: 1})
	if err != nil {
		return Stats{}, fmt.Errorf("count ordinals: %w", err)
	}
	stats.TotalListings = total
	return stats, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// Trending returns visible collections by traded volume.
func (s *Service) Trending(ctx context.Context, limit int) ([]collection.Collection, error) {
	cols, err := s.collections.ListCollections(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Stats.Volume > cols[j].Stats.Volume })
	if limit = clampLimit(limit); len(cols) > limit {
		cols = cols[:limit]
	}
	return cols, nil
}

// RecentSales returns the latest sales, newest first.
func (s *Service) RecentSales(ctx context.Context, limit int) ([]transaction.Transaction, error) {
	txs, err := s.transactions.ListTransactions(ctx, transaction.Filter{Type: transaction.TypeSale, Limit: clampLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("list recent sales: %w", err)
	}
	return txs, nil
}

// Featured returns visible collections with minted items, best sellers first.
func (s *Service) Featured(ctx context.Context) ([]collection.Collection, error) {
	cols, err := s.collections.ListCollections(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	featured := make([]collection.Collection, 0, len(cols))
	for _, col := range cols {
		if col.Minted > 0 {
			featured = append(featured, col)
		}
	}
	sort.SliceStable(featured, func(i, j int) bool { return featured[i].Stats.Sales > featured[j].Stats.Sales })
	return featured, nil
}

// PriceHistory returns sales of a collection, or of a single ordinal when id
// names one, oldest first.
func (s *Service) PriceHistory(ctx context.Context, id string) ([]transaction.Transaction, error) {
	if !domain.ValidID(id) {
		return nil, apperrors.BadRequest("Invalid ID")
	}
	filter := transaction.Filter{Type: transaction.TypeSale}
	if _, err := s.collections.GetCollection(ctx, id); err == nil {
		filter.CollectionID = id
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get collection %s: %w", id, err)
	} else if _, err := s.getOrdinal(ctx, id); err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil, apperrors.NotFound("Collection or ordinal not found")
		}
		return nil, err
	} else {
		filter.OrdinalID = id
	}

	txs, err := s.transactions.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	return txs, nil
}

// Transactions returns the activity of one ordinal, newest first.
func (s *Service) Transactions(ctx context.Context, ordinalID string) ([]transaction.Transaction, error) {
	if _, err := s.getOrdinal(ctx, ordinalID); err != nil {
		return nil, err
	}
	txs, err := s.transactions.ListTransactions(ctx, transaction.Filter{OrdinalID: ordinalID})
	if err != nil {
		return nil, fmt.Errorf("list transactions of ordinal %s: %w", ordinalID, err)
	}
	return txs, nil
}

func roundBTC(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

func contentTypeOf(image string) string {
	lower := strings.ToLower(image)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".svg"):
		return "image/svg+xml"
	default:
		return "image/jpeg"
	}
}
