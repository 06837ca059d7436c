package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"chat-sentiment-demo/backend/internal/models"
	"chat-sentiment-demo/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024 // 64KB
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Message is the envelope for every websocket frame
type Message struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// ConversationService defines the session operations the hub needs
type ConversationService interface {
	SendMessage(ctx context.Context, userID uint, sessionID, content string) (*models.SendMessageResponse, error)
	GetTurns(userID uint, sessionID string, limit, offset int) ([]models.Turn, error)
}

// Client is one live websocket connection bound to a chat session
type Client struct {
	ID        string
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
	UserID    uint
	SessionID string
}

// Hub tracks live websocket clients and routes their chat messages through
// the conversation service
type Hub struct {
	clients      map[*Client]bool
	register     chan *Client
	unregister   chan *Client
	conversation ConversationService
	mu           sync.Mutex
}

// NewHub creates a websocket hub
func NewHub(conversation ConversationService) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		conversation: conversation,
	}
}

// Run processes client registration until the process exits
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("Client registered: %s for session %s", client.ID, client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Printf("Client unregistered: %s", client.ID)
			}
			h.mu.Unlock()
		}
	}
}

// ReadPump reads frames from the peer until the connection drops
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageData, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		var message Message
		if err := json.Unmarshal(messageData, &message); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		go c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message Message) {
	switch message.Type {
	case "chat":
		c.handleChatMessage(message)
	case "ping":
		c.sendMessage("pong", nil)
	default:
		log.Printf("Unknown message type: %s", message.Type)
	}
}

// handleChatMessage runs one user message through the conversation service
// and streams back the analysis and the bot's reply
func (c *Client) handleChatMessage(message Message) {
	var chatContent struct {
		Content string `json:"content"`
	}

	contentBytes, err := json.Marshal(message.Content)
	if err != nil {
		log.Printf("Error marshaling content: %v", err)
		return
	}
	if err := json.Unmarshal(contentBytes, &chatContent); err != nil {
		log.Printf("Error unmarshaling chat content: %v", err)
		return
	}

	// Notify the client that the bot is composing a reply
	c.sendMessage("typing", map[string]interface{}{
		"is_typing": true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := c.Hub.conversation.SendMessage(ctx, c.UserID, c.SessionID, chatContent.Content)
	if err != nil {
		log.Printf("Error handling chat message: %v", err)
		c.sendErrorMessage("Failed to process your message")
		return
	}

	c.sendMessage("analysis", resp.Analysis)
	c.sendMessage("chat", resp.BotTurn)
}

func (c *Client) sendMessage(messageType string, content interface{}) {
	message := Message{
		Type:    messageType,
		Content: content,
	}

	messageJSON, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	c.Send <- messageJSON
}

func (c *Client) sendErrorMessage(errorText string) {
	c.sendMessage("error", map[string]string{
		"message": errorText,
	})
}

// WritePump writes frames to the peer and keeps the connection alive with
// periodic pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Drain any queued messages as separate frames
			n := len(c.Send)
			for i := 0; i < n; i++ {
				extraMsg := <-c.Send
				if err := c.Conn.WriteMessage(websocket.TextMessage, extraMsg); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs authenticates the caller and upgrades the connection. The token
// travels in the query string because browsers cannot set headers on
// websocket handshakes.
func ServeWs(hub *Hub, jwtService *jwt.Service, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}

	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		return
	}

	conn.EnableWriteCompression(true)

	client := &Client{
		ID:        fmt.Sprintf("client-%d-%d", claims.UserID, time.Now().UnixNano()),
		Conn:      conn,
		Send:      make(chan []byte, 256),
		Hub:       hub,
		UserID:    claims.UserID,
		SessionID: sessionID,
	}

	// Replay the transcript so a reconnecting client catches up
	turns, err := hub.conversation.GetTurns(client.UserID, sessionID, 200, 0)
	if err != nil {
		log.Printf("Error loading previous messages: %v", err)
	} else if len(turns) > 0 {
		client.sendHistory(turns)
	}

	client.Hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

func (c *Client) sendHistory(turns []models.Turn) {
	message := Message{
		Type:    "chat_history",
		Content: map[string]interface{}{"turns": turns},
	}

	messageJSON, err := json.Marshal(message)
	if err != nil {
		return
	}

	select {
	case c.Send <- messageJSON:
	default:
	}
}
