package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/services/marketplace"
	"github.com/R3E-Network/ordzaar/internal/app/services/ordinals"
	"github.com/R3E-Network/ordzaar/internal/httputil"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

func (h *handler) ordinalRoutes(api *mux.Router) {
	api.HandleFunc("/ordinals", h.listOrdinals).Methods(http.MethodGet)
	api.HandleFunc("/ordinals/search", h.searchOrdinals).Methods(http.MethodGet)
	api.HandleFunc("/ordinals/mint", h.mintOrdinal).Methods(http.MethodPost)
	api.HandleFunc("/ordinals/{id}", h.getOrdinal).Methods(http.MethodGet)
	api.HandleFunc("/ordinals/{id}/transactions", h.ordinalTransactions).Methods(http.MethodGet)
	api.Handle("/ordinals/{id}/list", h.authenticated(h.listOrdinalForSale)).Methods(http.MethodPut)
	api.Handle("/ordinals/{id}/list", h.authenticated(h.unlistOrdinal)).Methods(http.MethodDelete)
	api.HandleFunc("/ordinals/{id}/buy", h.buyOrdinal).Methods(http.MethodPost)
}

func (h *handler) listOrdinals(w http.ResponseWriter, r *http.Request) {
	page, err := h.app.Ordinals.List(r.Context(), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, page)
}

func (h *handler) searchOrdinals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ordinals.SearchParams{
		Query:        strings.TrimSpace(q.Get("q")),
		Status:       ordinal.Status(strings.TrimSpace(q.Get("status"))),
		CollectionID: strings.TrimSpace(q.Get("collectionId")),
		Page:         queryInt(r, "page"),
		Limit:        queryInt(r, "limit"),
	}
	var err error
	if params.Listed, err = queryBool(r, "listed"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if params.MinPrice, err = queryFloat(r, "minPrice"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if params.MaxPrice, err = queryFloat(r, "maxPrice"); err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.app.Ordinals.Search(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, page)
}

func (h *handler) getOrdinal(w http.ResponseWriter, r *http.Request) {
	ord, err := h.app.Ordinals.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, ord)
}

func (h *handler) ordinalTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.app.Marketplace.Transactions(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, txs)
}

func (h *handler) mintOrdinal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OrdinalID string `json:"ordinalId"`
		Provider  string `json:"provider"`
		Address   string `json:"address"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.app.Marketplace.Mint(r.Context(), marketplace.Request{
		OrdinalID: strings.TrimSpace(payload.OrdinalID),
		Provider:  payload.Provider,
		Address:   payload.Address,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, http.StatusOK, res, "Ordinal minted successfully")
}

func (h *handler) buyOrdinal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Provider string `json:"provider"`
		Address  string `json:"address"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.app.Marketplace.Buy(r.Context(), marketplace.Request{
		OrdinalID: pathVar(r, "id"),
		Provider:  payload.Provider,
		Address:   payload.Address,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, http.StatusOK, res, "Ordinal purchased successfully")
}

func (h *handler) listOrdinalForSale(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Price   flexString `json:"price"`
		Address string     `json:"address"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	ord, err := h.app.Ordinals.ListForSale(r.Context(), pathVar(r, "id"), h.callerAddress(r, payload.Address), payload.Price.Value)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, http.StatusOK, ord, "Ordinal listed for sale")
}

func (h *handler) unlistOrdinal(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	ord, err := h.app.Ordinals.Unlist(r.Context(), pathVar(r, "id"), h.callerAddress(r, address))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccessMessage(w, http.StatusOK, ord, "Ordinal removed from sale")
}

// callerAddress is the wallet address bound to the token. Without
// authentication the address supplied in the request is trusted.
func (h *handler) callerAddress(r *http.Request, supplied string) string {
	if h.auth.Enabled() {
		return logger.GetAddress(r.Context())
	}
	return strings.TrimSpace(supplied)
}
