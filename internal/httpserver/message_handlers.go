package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"chatflow/internal/domain"
	"chatflow/internal/service"
)

type markReadResponse struct {
	Message string `json:"message"`
	Updated int64  `json:"updated"`
}

// @Summary      Send message
// @Description  Persist a direct message and deliver it live if the receiver is online
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body service.SendInput true "Message"
// @Success      201  {object}  service.MessageResponse
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /messages [post]
func handleSendMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.SendInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		resp, err := msgSvc.Send(r.Context(), CurrentUser(r).ID, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// @Summary      Get messages
// @Description  Full history with a peer, oldest first
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        userID path int true "Peer user ID"
// @Success      200  {array}   service.MessageResponse
// @Failure      404  {object}  map[string]string
// @Router       /messages/{userID} [get]
func handleGetMessages(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peer, err := domain.ParseUserID(chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		msgs, err := msgSvc.Fetch(r.Context(), CurrentUser(r).ID, peer)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// @Summary      Mark as read
// @Description  Mark every message from a peer as read
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        userID path int true "Peer user ID"
// @Success      200  {object}  markReadResponse
// @Router       /messages/read/{userID} [put]
func handleMarkRead(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peer, err := domain.ParseUserID(chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		n, err := msgSvc.MarkRead(r.Context(), CurrentUser(r).ID, peer)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, markReadResponse{Message: "messages marked as read", Updated: n})
	}
}

// @Summary      List conversations
// @Description  Conversations of the current user, most recent first
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   service.ConversationResponse
// @Router       /messages/conversations [get]
func handleListConversations(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convs, err := convSvc.List(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
	}
}
