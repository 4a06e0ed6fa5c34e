package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mahaj/baithak/pkg/model"
	"github.com/mahaj/baithak/pkg/realtime"
	"github.com/mahaj/baithak/pkg/store"
)

type createGroupRequest struct {
	Name    string   `json:"name" validate:"required,min=1,max=80"`
	Members []string `json:"members" validate:"required,min=2,dive,required"`
}

type renameGroupRequest struct {
	Name string `json:"name" validate:"required,min=1,max=80"`
}

// chatSummary resolves a stored chat into its event/API shape: member
// identities and the last message inlined.
func (a *api) chatSummary(ctx context.Context, chat *model.Chat) (*model.ChatSummary, error) {
	members, err := a.users.FindIdentities(ctx, chat.Members)
	if err != nil {
		return nil, err
	}

	summary := &model.ChatSummary{
		ID:        chat.ID,
		Name:      chat.Name,
		IsGroup:   chat.IsGroup,
		AdminID:   chat.AdminID,
		Members:   members,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}

	if chat.LastMessageID != 0 {
		if msg, err := a.messages.FindByID(ctx, chat.ID, chat.LastMessageID); err == nil {
			a.attachSender(ctx, msg)
			summary.LastMessage = msg
		}
	}
	return summary, nil
}

func (a *api) loadChat(w http.ResponseWriter, r *http.Request) (*model.Chat, bool) {
	chat, err := a.chats.FindByID(r.Context(), r.PathValue("chatId"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "chat lookup failed")
		return nil, false
	}
	return chat, true
}

func (a *api) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	chats, err := a.chats.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}

	summaries := make([]model.ChatSummary, 0, len(chats))
	for i := range chats {
		summary, err := a.chatSummary(r.Context(), &chats[i])
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve chat")
			return
		}
		if count, err := a.counters.Get(r.Context(), userID, chats[i].ID); err == nil {
			summary.UnreadCount = count
		}
		summaries = append(summaries, *summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	writeJSON(w, http.StatusOK, summaries, "")
}

// DirectChatHandler returns the existing one-on-one chat with the receiver,
// creating it on first contact. Creation notifies the receiver's identity
// room with newChat.
func (a *api) DirectChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	receiverID := r.PathValue("receiverId")

	if receiverID == userID {
		writeError(w, http.StatusBadRequest, "you can't chat with yourself")
		return
	}
	if _, err := a.users.FindByID(r.Context(), receiverID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid receiver id")
		return
	}

	existing, err := a.chats.FindDirectBetween(r.Context(), userID, receiverID)
	if err == nil {
		summary, err := a.chatSummary(r.Context(), existing)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve chat")
			return
		}
		writeJSON(w, http.StatusOK, summary, "chat retrieved successfully")
		return
	}
	// Only a definite not-found may fall through to creation; a transient
	// store failure must not mint a second chat for the pair.
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("Direct chat lookup for %s/%s failed: %v", userID, receiverID, err)
		writeError(w, http.StatusInternalServerError, "chat lookup failed")
		return
	}

	now := time.Now()
	chat := &model.Chat{
		ID:        uuid.NewString(),
		Name:      "One on one chat",
		IsGroup:   false,
		AdminID:   userID,
		Members:   []string{userID, receiverID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.chats.Create(r.Context(), chat); err != nil {
		log.Printf("Failed to create direct chat: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}

	a.notifyChat(r.Context(), chat.ID, userID, realtime.EventNewChat)

	summary, err := a.chatSummary(r.Context(), chat)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve chat")
		return
	}
	writeJSON(w, http.StatusCreated, summary, "chat created successfully")
}

func (a *api) CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if lo.Contains(req.Members, userID) {
		writeError(w, http.StatusBadRequest, "members array should not contain the group creator")
		return
	}

	participants := lo.Uniq(append(req.Members, userID))
	if len(participants) < 3 {
		writeError(w, http.StatusBadRequest, "group chat must have at least 3 members")
		return
	}
	for _, id := range participants {
		if _, err := a.users.FindByID(r.Context(), id); err != nil {
			writeError(w, http.StatusBadRequest, "invalid member id: "+id)
			return
		}
	}

	now := time.Now()
	chat := &model.Chat{
		ID:        uuid.NewString(),
		Name:      req.Name,
		IsGroup:   true,
		AdminID:   userID,
		Members:   participants,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.chats.Create(r.Context(), chat); err != nil {
		log.Printf("Failed to create group chat: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create group chat")
		return
	}

	a.notifyChat(r.Context(), chat.ID, userID, realtime.EventNewChat)

	summary, err := a.chatSummary(r.Context(), chat)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve chat")
		return
	}
	writeJSON(w, http.StatusCreated, summary, "group chat created successfully")
}

func (a *api) GetGroupHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	chat, ok := a.loadChat(w, r)
	if !ok {
		return
	}
	if !chat.IsGroup || !chat.HasMember(userID) {
		writeError(w, http.StatusNotFound, "group chat not found")
		return
	}

	summary, err := a.chatSummary(r.Context(), chat)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve chat")
		return
	}
	writeJSON(w, http.StatusOK, summary, "")
}

// RenameGroupHandler renames a group; every member's identity room gets
// updateGroupName, the actor's included.
func (a *api) RenameGroupHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	chat, ok := a.loadChat(w, r)
	if !ok {
		return
	}
	if !chat.IsGroup {
		writeError(w, http.StatusBadRequest, "not a group chat")
		return
	}
	if chat.AdminID != userID {
		writeError(w, http.StatusForbidden, "you are not the admin of this chat")
		return
	}

	var req renameGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.chats.Rename(r.Context(), chat.ID, req.Name); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rename chat")
		return
	}

	// Re-read for authoritative state, then notify everyone including the
	// actor.
	updated, err := a.chats.FindByID(r.Context(), chat.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload chat")
		return
	}
	summary, err := a.chatSummary(r.Context(), updated)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve chat")
		return
	}
	for _, memberID := range updated.Members {
		a.notifier.Emit(memberID, realtime.EventUpdateGroupName, summary)
	}

	writeJSON(w, http.StatusOK, summary, "group name updated successfully")
}

// DeleteGroupHandler deletes a group and its messages; the other members'
// identity rooms get leaveChat.
func (a *api) DeleteGroupHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	chat, ok := a.loadChat(w, r)
	if !ok {
		return
	}
	if !chat.IsGroup {
		writeError(w, http.StatusBadRequest, "not a group chat")
		return
	}
	if chat.AdminID != userID {
		writeError(w, http.StatusForbidden, "only the admin can delete the group")
		return
	}

	summary, err := a.chatSummary(r.Context(), chat)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve chat")
		return
	}

	if err := a.chats.Delete(r.Context(), chat); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	if err := a.messages.DeleteByChat(r.Context(), chat.ID); err != nil {
		log.Printf("Failed to cascade messages for chat %s: %v", chat.ID, err)
	}

	a.notifier.FanOut(chat.Members, userID, realtime.EventLeaveChat, summary)
	writeJSON(w, http.StatusOK, nil, "group chat deleted successfully")
}

// LeaveGroupHandler removes the caller from a group; remaining members'
// identity rooms get leaveChat with the updated summary.
func (a *api) LeaveGroupHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	chat, ok := a.loadChat(w, r)
	if !ok {
		return
	}
	if !chat.IsGroup {
		writeError(w, http.StatusBadRequest, "not a group chat")
		return
	}
	if !chat.HasMember(userID) {
		writeError(w, http.StatusBadRequest, "you are not a member of this group")
		return
	}

	if err := a.chats.RemoveMember(r.Context(), chat.ID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to leave chat")
		return
	}

	a.notifyChat(r.Context(), chat.ID, userID, realtime.EventLeaveChat)
	writeJSON(w, http.StatusOK, nil, "group chat left successfully")
}

// AddMemberHandler adds a user to a group; the new member's identity room
// gets newChat.
func (a *api) AddMemberHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	chat, ok := a.loadChat(w, r)
	if !ok {
		return
	}
	memberID := r.PathValue("memberId")

	if !chat.IsGroup {
		writeError(w, http.StatusBadRequest, "not a group chat")
		return
	}
	if chat.AdminID != userID {
		writeError(w, http.StatusForbidden, "you are not the admin of this group chat")
		return
	}
	if chat.HasMember(memberID) {
		writeError(w, http.StatusBadRequest, "this member is already in the group chat")
		return
	}
	if _, err := a.users.FindByID(r.Context(), memberID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id")
		return
	}

	if err := a.chats.AddMember(r.Context(), chat.ID, memberID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	updated, err := a.chats.FindByID(r.Context(), chat.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload chat")
		return
	}
	summary, err := a.chatSummary(r.Context(), updated)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve chat")
		return
	}

	a.notifier.Emit(memberID, realtime.EventNewChat, summary)
	writeJSON(w, http.StatusOK, summary, "member added successfully")
}

// RemoveMemberHandler removes a user from a group; the removed member's
// identity room gets leaveChat.
func (a *api) RemoveMemberHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	chat, ok := a.loadChat(w, r)
	if !ok {
		return
	}
	memberID := r.PathValue("memberId")

	if !chat.IsGroup {
		writeError(w, http.StatusBadRequest, "not a group chat")
		return
	}
	if chat.AdminID != userID {
		writeError(w, http.StatusForbidden, "you are not authorized to perform this action")
		return
	}
	if !chat.HasMember(memberID) {
		writeError(w, http.StatusNotFound, "member not found in the group chat")
		return
	}

	if err := a.chats.RemoveMember(r.Context(), chat.ID, memberID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}

	updated, err := a.chats.FindByID(r.Context(), chat.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload chat")
		return
	}
	summary, err := a.chatSummary(r.Context(), updated)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve chat")
		return
	}

	a.notifier.Emit(memberID, realtime.EventLeaveChat, summary)
	writeJSON(w, http.StatusOK, summary, "member removed successfully")
}

// MarkReadHandler resets the caller's unread counter for a chat.
func (a *api) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	chat, ok := a.loadChat(w, r)
	if !ok {
		return
	}
	if !chat.HasMember(userID) {
		writeError(w, http.StatusForbidden, "you are not a member of this chat")
		return
	}
	chatID := chat.ID

	if err := a.counters.Reset(r.Context(), userID, chatID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset unread count")
		return
	}

	a.publisher.Publish(r.Context(), &model.MessageEvent{
		Kind:    model.MessagesRead,
		ChatID:  chatID,
		ActorID: userID,
	})
	writeJSON(w, http.StatusOK, nil, "")
}

// notifyChat re-reads the chat after a commit and fans the event out to the
// authoritative member list, skipping the actor.
func (a *api) notifyChat(ctx context.Context, chatID, actorID, event string) {
	chat, err := a.chats.FindByID(ctx, chatID)
	if err != nil {
		// Store failures on the notification path never roll back the
		// committed mutation.
		log.Printf("Fan-out read for chat %s failed: %v", chatID, err)
		return
	}
	summary, err := a.chatSummary(ctx, chat)
	if err != nil {
		log.Printf("Fan-out summary for chat %s failed: %v", chatID, err)
		return
	}
	a.notifier.FanOut(chat.Members, actorID, event, summary)
}
