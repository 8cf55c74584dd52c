package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/ordzaar/internal/app/domain/user"
	"github.com/R3E-Network/ordzaar/internal/app/services/users"
	"github.com/R3E-Network/ordzaar/internal/httputil"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

func (h *handler) userRoutes(api *mux.Router) {
	api.HandleFunc("/users", h.registerUser).Methods(http.MethodPost)
	api.HandleFunc("/users/{username}", h.getUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{username}/ordinals", h.userOrdinals).Methods(http.MethodGet)
	api.Handle("/users/{username}", h.authenticated(h.updateUser)).Methods(http.MethodPut)
}

func (h *handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Address  string `json:"address"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.app.Users.Register(r.Context(), payload.Username, payload.Address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, u)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), pathVar(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, u)
}

func (h *handler) userOrdinals(w http.ResponseWriter, r *http.Request) {
	ords, err := h.app.Users.Ordinals(r.Context(), pathVar(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, ords)
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username     *string `json:"username"`
		ProfileImage *string `json:"profileImage"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	actor := users.Actor{
		UserID:  logger.GetUserID(ctx),
		Address: logger.GetAddress(ctx),
		Role:    user.Role(logger.GetRole(ctx)),
	}
	updated, err := h.app.Users.UpdateProfile(ctx, actor, pathVar(r, "username"), users.Patch{
		Username:     payload.Username,
		ProfileImage: payload.ProfileImage,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, updated)
}
