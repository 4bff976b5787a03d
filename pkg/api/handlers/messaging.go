package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"courier/pkg/convo"
	"courier/pkg/groups"
	"courier/pkg/logger"
	"courier/pkg/messages"
	"courier/pkg/models"
	"courier/pkg/users"
	"courier/pkg/utils"
	"courier/pkg/validation"
)

// RegisterMessaging registers the send, history and conversation-list
// endpoints.
func RegisterMessaging(r *mux.Router) {
	r.HandleFunc("/send-message", sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{targetId}", listByTarget).Methods(http.MethodGet)
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)
}

func sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		ToUserID string `json:"toUserId"`
		GroupID  string `json:"groupId"`
		Text     string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &req, validation.MaxBodyBytes()); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateSendMessage(req.ToUserID, req.GroupID, req.Text); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.GroupID != "" {
		g, err := groups.Get(req.GroupID)
		if err != nil {
			if errors.Is(err, groups.ErrNotFound) {
				utils.JSONError(w, http.StatusNotFound, "group not found")
				return
			}
			internalError(w)
			return
		}
		if !g.HasMember(id.ID) {
			utils.JSONError(w, http.StatusForbidden, "not a member of this group")
			return
		}
	} else {
		if _, err := users.Get(req.ToUserID); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				utils.JSONError(w, http.StatusNotFound, "recipient not found")
				return
			}
			internalError(w)
			return
		}
	}

	m, err := messages.Append(models.Message{
		FromUserID: id.ID,
		ToUserID:   req.ToUserID,
		GroupID:    req.GroupID,
		Text:       req.Text,
	})
	if err != nil {
		internalError(w)
		return
	}
	// index maintenance follows the message write; a crash in between
	// leaves the message stored but unlisted until the next DM or sweep
	if m.IsDirect() {
		if err := convo.RecordDirect(m.FromUserID, m.ToUserID); err != nil {
			logger.Error("conversation_index_failed", "from", m.FromUserID, "to", m.ToUserID, "error", err)
			internalError(w)
			return
		}
	}
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

// listByTarget returns the message history with one target: a group when
// the id carries the group_ prefix, otherwise a DM peer.
func listByTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	target := mux.Vars(r)["targetId"]

	var (
		msgs []models.Message
		err  error
	)
	if groups.IsGroupID(target) {
		g, gerr := groups.Get(target)
		if gerr != nil {
			if errors.Is(gerr, groups.ErrNotFound) {
				utils.JSONError(w, http.StatusNotFound, "group not found")
				return
			}
			internalError(w)
			return
		}
		if !g.HasMember(id.ID) {
			utils.JSONError(w, http.StatusForbidden, "not a member of this group")
			return
		}
		msgs, err = messages.ListGroup(target)
	} else {
		msgs, err = messages.ListDirect(id.ID, target)
	}
	if err != nil {
		internalError(w)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Messages []models.Message `json:"messages"`
	}{Messages: msgs})
}

// listConversations merges the caller's DM peers and groups into one list
// sorted by recency. Dangling peer or group ids (left behind by partial
// cascades) are skipped, never errors.
func listConversations(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var out []models.Conversation

	peers, err := convo.ListPeers(id.ID)
	if err != nil {
		internalError(w)
		return
	}
	for _, peer := range peers {
		u, err := users.Get(peer)
		if err != nil {
			continue // deleted peer, index entry dangles
		}
		c := models.Conversation{ID: peer, Kind: models.ConversationDirect, Name: u.Name}
		if latest, found, err := messages.LatestDirect(id.ID, peer); err == nil && found {
			c.LatestMessage = latest.Text
			c.LatestTS = latest.Timestamp
		}
		out = append(out, c)
	}

	gids, err := convo.ListGroups(id.ID)
	if err != nil {
		internalError(w)
		return
	}
	for _, gid := range gids {
		g, err := groups.Get(gid)
		if err != nil {
			continue // deleted group, index entry dangles
		}
		c := models.Conversation{
			ID:          gid,
			Kind:        models.ConversationGroup,
			Name:        g.Name,
			MemberCount: len(g.MemberIDs),
		}
		if latest, found, err := messages.LatestGroup(gid); err == nil && found {
			c.LatestMessage = latest.Text
			c.LatestTS = latest.Timestamp
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].LatestTS > out[j].LatestTS })
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Conversations []models.Conversation `json:"conversations"`
	}{Conversations: out})
}
