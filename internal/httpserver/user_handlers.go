package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatflow/internal/domain"
	"chatflow/internal/service"
)

type onlineUsersResponse struct {
	Users []domain.UserID `json:"users"`
}

// @Summary      Online users
// @Description  Users currently holding a live connection
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  onlineUsersResponse
// @Router       /users/online [get]
func handleListOnlineUsers(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, onlineUsersResponse{Users: userSvc.Online()})
	}
}

// @Summary      Get user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        userID path int true "User ID"
// @Success      200  {object}  domain.Profile
// @Failure      404  {object}  map[string]string
// @Router       /users/{userID} [get]
func handleGetUser(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseUserID(chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		prof, err := userSvc.GetProfile(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, prof)
	}
}

// @Summary      Search users
// @Description  Case-insensitive username search, at most 10 results
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        query query string true "Search text"
// @Success      200  {array}   domain.Profile
// @Failure      400  {object}  map[string]string
// @Router       /messages/users/search [get]
func handleSearchUsers(userSvc *service.UserService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := userSvc.Search(r.Context(), CurrentUser(r).ID, r.URL.Query().Get("query"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}
