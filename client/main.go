package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mahaj/baithak/pkg/model"
	"github.com/mahaj/baithak/pkg/realtime"
	"github.com/mahaj/baithak/pkg/session"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type loginResult struct {
	Token string         `json:"token"`
	User  model.Identity `json:"user"`
}

// restClient wraps the handful of REST calls the terminal client makes.
type restClient struct {
	base  string
	token string
	http  *http.Client
}

func (c *restClient) do(method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !envelope.Success {
		return fmt.Errorf("%s %s: %s", method, path, envelope.Message)
	}
	if out != nil && envelope.Data != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func (c *restClient) login(username, password string) (*loginResult, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	var result loginResult
	if err := c.do(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body), "application/json", &result); err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

func (c *restClient) listChats() ([]model.ChatSummary, error) {
	var chats []model.ChatSummary
	err := c.do(http.MethodGet, "/api/v1/chats", nil, "", &chats)
	return chats, err
}

func (c *restClient) sendMessage(chatID, content string) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	form.WriteField("content", content)
	form.Close()
	return c.do(http.MethodPost, "/api/v1/messages/"+chatID, &buf, form.FormDataContentType(), nil)
}

func (c *restClient) markRead(chatID string) error {
	return c.do(http.MethodPost, "/api/v1/chats/"+chatID+"/read", nil, "", nil)
}

// wsEmitter satisfies session.Emitter over the live websocket.
type wsEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (e *wsEmitter) Emit(event string, payload any) error {
	data, err := realtime.EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteMessage(websocket.TextMessage, data)
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "server address")
	username := flag.String("user", "", "username")
	password := flag.String("pass", "", "password")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -user and -pass are required")
	}

	rest := &restClient{base: "http://" + *serverAddr, http: http.DefaultClient}

	log.Printf("Logging in as %s...", *username)
	login, err := rest.login(*username, *password)
	if err != nil {
		log.Fatal("Login failed: ", err)
	}
	me := login.User

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	header := http.Header{}
	header.Set("Cookie", "accessToken="+login.Token)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial: ", err)
	}
	defer conn.Close()

	emitter := &wsEmitter{conn: conn}
	sess := session.New(emitter, 0)
	sess.Connecting()

	done := make(chan struct{})
	go readLoop(conn, sess, me.ID, done)

	fmt.Println(`Commands: /chats, /open <chatId>, /read, /quit. Anything else goes to the open chat.`)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		conn.Close()
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue

		case line == "/quit":
			conn.Close()
			<-done
			return

		case line == "/chats":
			chats, err := rest.listChats()
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			for _, c := range chats {
				unread := int(c.UnreadCount) + sess.Unread(c.ID)
				fmt.Printf("  %s  %q  (%d members, %d unread)\n", c.ID, c.Name, len(c.Members), unread)
			}

		case strings.HasPrefix(line, "/open "):
			chatID := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			if err := sess.OpenChat(chatID); err != nil {
				fmt.Println("error:", err)
				continue
			}
			if err := rest.markRead(chatID); err != nil {
				fmt.Println("error:", err)
			}
			fmt.Println("viewing chat", chatID)

		case line == "/read":
			if chatID := sess.ActiveChat(); chatID != "" {
				if err := rest.markRead(chatID); err != nil {
					fmt.Println("error:", err)
				}
			}

		default:
			chatID := sess.ActiveChat()
			if chatID == "" {
				fmt.Println("open a chat first: /open <chatId>")
				continue
			}
			sess.InputChanged()
			if err := rest.sendMessage(chatID, line); err != nil {
				fmt.Println("error:", err)
			}
			sess.ComposerSent()
		}
	}
	<-done
}

// readLoop feeds incoming events into the session state machine and renders
// them.
func readLoop(conn *websocket.Conn, sess *session.Session, selfID string, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			sess.HandleDisconnected()
			fmt.Println("\rdisconnected")
			return
		}

		env, err := realtime.DecodeEnvelope(data)
		if err != nil {
			log.Printf("Received an undecodable frame: %v", err)
			continue
		}

		switch env.Event {
		case realtime.EventConnected:
			sess.HandleConnected()
			fmt.Printf("\rconnected as %s\n> ", selfID)

		case realtime.EventSocketError:
			var reason string
			json.Unmarshal(env.Payload, &reason)
			fmt.Printf("\rsocket error: %s\n", reason)

		case realtime.EventMessageReceived:
			var msg model.Message
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				continue
			}
			sess.HandleMessageReceived(msg)
			if msg.ChatID == sess.ActiveChat() {
				sender := msg.SenderID
				if msg.Sender != nil {
					sender = msg.Sender.Username
				}
				fmt.Printf("\r%s: %s\n> ", sender, msg.Content)
			} else {
				fmt.Printf("\r[%d unread in %s]\n> ", sess.Unread(msg.ChatID), msg.ChatID)
			}

		case realtime.EventMessageDeleted:
			var msg model.Message
			if err := json.Unmarshal(env.Payload, &msg); err != nil {
				continue
			}
			fmt.Printf("\rmessage %d deleted in %s\n> ", msg.ID, msg.ChatID)

		case realtime.EventTyping:
			var chatID string
			json.Unmarshal(env.Payload, &chatID)
			sess.HandleTyping(chatID)
			if chatID == sess.ActiveChat() {
				fmt.Print("\rsomeone is typing...\n> ")
			}

		case realtime.EventStopTyping:
			var chatID string
			json.Unmarshal(env.Payload, &chatID)
			sess.HandleStopTyping(chatID)

		case realtime.EventNewChat:
			var chat model.ChatSummary
			if err := json.Unmarshal(env.Payload, &chat); err != nil {
				continue
			}
			fmt.Printf("\rnew chat %q (%s)\n> ", chat.Name, chat.ID)

		case realtime.EventUpdateGroupName:
			var chat model.ChatSummary
			if err := json.Unmarshal(env.Payload, &chat); err != nil {
				continue
			}
			fmt.Printf("\rchat %s renamed to %q\n> ", chat.ID, chat.Name)

		case realtime.EventLeaveChat:
			var chat model.ChatSummary
			if err := json.Unmarshal(env.Payload, &chat); err == nil && chat.ID != "" {
				fmt.Printf("\rmembership changed in %q (%s)\n> ", chat.Name, chat.ID)
			}
		}
	}
}
