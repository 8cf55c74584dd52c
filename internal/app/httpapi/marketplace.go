package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/R3E-Network/ordzaar/internal/httputil"
)

func (h *handler) marketplaceRoutes(api *mux.Router) {
	api.HandleFunc("/marketplace/stats", h.marketStats).Methods(http.MethodGet)
	api.HandleFunc("/marketplace/trending", h.trendingCollections).Methods(http.MethodGet)
	api.HandleFunc("/marketplace/recent-sales", h.recentSales).Methods(http.MethodGet)
	api.HandleFunc("/marketplace/featured-collections", h.featuredCollections).Methods(http.MethodGet)
	api.HandleFunc("/marketplace/price-history/{id}", h.priceHistory).Methods(http.MethodGet)
	api.HandleFunc("/wallet/balance/{address}", h.walletBalance).Methods(http.MethodGet)
}

func (h *handler) marketStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Marketplace.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, stats)
}

func (h *handler) trendingCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := h.app.Marketplace.Trending(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, cols)
}

func (h *handler) recentSales(w http.ResponseWriter, r *http.Request) {
	txs, err := h.app.Marketplace.RecentSales(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, txs)
}

func (h *handler) featuredCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := h.app.Marketplace.Featured(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, cols)
}

func (h *handler) priceHistory(w http.ResponseWriter, r *http.Request) {
	txs, err := h.app.Marketplace.PriceHistory(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, txs)
}

type balanceResponse struct {
	Address    string `json:"address"`
	Balance    int64  `json:"balance"`
	Configured bool   `json:"configured"`
}

func (h *handler) walletBalance(w http.ResponseWriter, r *http.Request) {
	address := pathVar(r, "address")
	sats, err := h.app.Wallet.Balance(r.Context(), address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, balanceResponse{
		Address:    address,
		Balance:    sats,
		Configured: h.app.Wallet.BalanceConfigured(),
	})
}

type hostStats struct {
	CPUPercent     float64 `json:"cpuPercent"`
	MemUsedPercent float64 `json:"memUsedPercent"`
}

type healthResponse struct {
	Status           string    `json:"status"`
	Uptime           float64   `json:"uptime"`
	Storage          string    `json:"storage"`
	Services         []string  `json:"services"`
	WebsocketClients int       `json:"websocketClients"`
	Host             hostStats `json:"host"`
	Timestamp        time.Time `json:"timestamp"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		Uptime:           time.Since(h.started).Seconds(),
		Storage:          h.storage,
		Services:         h.app.Services(),
		WebsocketClients: h.app.Events.Clients(),
		Host:             sampleHost(r.Context()),
		Timestamp:        time.Now().UTC(),
	})
}

// sampleHost reads host load. Failures leave the fields at zero.
func sampleHost(ctx context.Context) hostStats {
	var out hostStats
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		out.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.MemUsedPercent = vm.UsedPercent
	}
	return out
}
