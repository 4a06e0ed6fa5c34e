package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/mahaj/baithak/pkg/model"
	"github.com/mahaj/baithak/pkg/realtime"
	"github.com/mahaj/baithak/pkg/store"
)

const maxUploadBytes = 10 << 20 // 10 MB per request

// attachSender inlines the sender's identity snapshot into a message.
func (a *api) attachSender(ctx context.Context, msg *model.Message) {
	if ident, err := a.users.FindIdentity(ctx, msg.SenderID); err == nil {
		msg.Sender = ident
	}
}

func (a *api) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
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

	messages, err := a.messages.ListByChat(r.Context(), chat.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	for i := range messages {
		a.attachSender(r.Context(), &messages[i])
	}
	writeJSON(w, http.StatusOK, messages, "")
}

// SendMessageHandler persists a message, then fans messageReceived out to
// every chat member except the sender, and feeds the archival stream.
func (a *api) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	content := r.FormValue("content")

	var attachments []string
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["attachments"] {
			file, err := header.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "unreadable attachment")
				return
			}
			url, err := a.saveUpload(file, header)
			file.Close()
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			attachments = append(attachments, url)
		}
	}

	if content == "" && len(attachments) == 0 {
		writeError(w, http.StatusBadRequest, "message content or attachment is required")
		return
	}

	msg := &model.Message{
		ID:          a.ids.Next(),
		ChatID:      chat.ID,
		SenderID:    userID,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   time.Now(),
	}
	if err := a.messages.Insert(r.Context(), msg); err != nil {
		log.Printf("Failed to insert message: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save message")
		return
	}
	if err := a.chats.SetLastMessage(r.Context(), chat.ID, msg.ID); err != nil {
		log.Printf("Failed to update last message for chat %s: %v", chat.ID, err)
	}

	// Authoritative membership for fan-out is read back post-commit.
	updated, err := a.chats.FindByID(r.Context(), chat.ID)
	if err != nil {
		log.Printf("Fan-out read for chat %s failed: %v", chat.ID, err)
		updated = chat
	}

	a.attachSender(r.Context(), msg)
	a.notifier.FanOut(updated.Members, userID, realtime.EventMessageReceived, msg)

	a.publisher.Publish(r.Context(), &model.MessageEvent{
		Kind:       model.MessageCreated,
		ChatID:     chat.ID,
		MessageID:  msg.ID,
		ActorID:    userID,
		Recipients: updated.Members,
	})

	writeJSON(w, http.StatusCreated, msg, "message saved successfully")
}

// DeleteMessageHandler removes a sender's own message, repairing the chat's
// last-message pointer, then fans messageDeleted out to the other members.
func (a *api) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
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

	messageID, err := strconv.ParseInt(r.PathValue("messageId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	msg, err := a.messages.FindByID(r.Context(), chat.ID, messageID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "message does not exist")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "message lookup failed")
		return
	}
	if msg.SenderID != userID {
		writeError(w, http.StatusForbidden, "only the sender can delete this message")
		return
	}

	if err := a.messages.Delete(r.Context(), chat.ID, messageID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	a.removeAttachmentFiles(msg.Attachments)

	// Repair the last-message pointer if the deleted one held it.
	if chat.LastMessageID == messageID {
		var lastID int64
		if latest, err := a.messages.LatestForChat(r.Context(), chat.ID); err == nil {
			lastID = latest.ID
		}
		if err := a.chats.SetLastMessage(r.Context(), chat.ID, lastID); err != nil {
			log.Printf("Failed to repair last message for chat %s: %v", chat.ID, err)
		}
	}

	updated, err := a.chats.FindByID(r.Context(), chat.ID)
	if err != nil {
		updated = chat
	}

	a.attachSender(r.Context(), msg)
	a.notifier.FanOut(updated.Members, userID, realtime.EventMessageDeleted, msg)

	a.publisher.Publish(r.Context(), &model.MessageEvent{
		Kind:      model.MessageDeleted,
		ChatID:    chat.ID,
		MessageID: messageID,
		ActorID:   userID,
	})

	writeJSON(w, http.StatusOK, msg, "message deleted successfully")
}

// saveUpload stores one uploaded file under a uuid name, sniffing the
// content type, and returns its public URL.
func (a *api) saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	head := make([]byte, 3072)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	name := uuid.NewString() + mtype.Extension()
	if ext := filepath.Ext(header.Filename); mtype.Extension() == "" && ext != "" {
		name = uuid.NewString() + ext
	}

	if err := os.MkdirAll(a.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	dst, err := os.Create(filepath.Join(a.uploadDir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := dst.Write(head); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return a.baseURL + "/uploads/" + name, nil
}

func (a *api) removeAttachmentFiles(urls []string) {
	for _, url := range urls {
		name := filepath.Base(url)
		if err := os.Remove(filepath.Join(a.uploadDir, name)); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove attachment %s: %v", name, err)
		}
	}
}
