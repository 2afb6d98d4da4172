package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"anoa.com/runclub/pkg/changefeed"
	"anoa.com/runclub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type clientMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type serverMessage struct {
	Kind   string            `json:"kind"`
	Topic  string            `json:"topic,omitempty"`
	Action string            `json:"action,omitempty"`
	Error  string            `json:"error,omitempty"`
	Event  *changefeed.Event `json:"event,omitempty"`
}

type RealtimeHandler struct {
	feed     changefeed.Subscriber
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewRealtimeHandler(feed changefeed.Subscriber, log logrus.FieldLogger) *RealtimeHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RealtimeHandler{
		feed: feed,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect streams change events to the caller. The caller's own
// notifications topic is always attached; other topics come from the
// topics query and later subscribe/unsubscribe messages.
func (h *RealtimeHandler) Connect(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	admin := response.IsAdmin(c)
	own := changefeed.NotificationsTopic(userID)

	topics := []string{own}
	for _, t := range ParseTopics(c.Query("topics")) {
		if t != own && AllowedTopic(t, userID, admin) {
			topics = append(topics, t)
		}
	}

	ctx := c.Request.Context()
	sub, err := h.feed.Subscribe(ctx, topics...)
	if err != nil {
		h.log.WithError(err).Warn("realtime subscribe failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime updates unavailable"})
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("failed to upgrade websocket")
		return
	}
	defer conn.Close()

	log := h.log.WithField("user_id", userID)
	log.WithField("topics", topics).Debug("realtime client connected")

	outbound := make(chan serverMessage, 16)
	clientClosed := make(chan struct{})
	stop := make(chan struct{})

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(clientClosed)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}

			reply := h.handleClientMessage(ctx, sub, raw, userID, own, admin)
			select {
			case outbound <- reply:
			case <-stop:
				return
			}
		}
	}()
	// The reader must be gone before the subscription is closed.
	defer func() {
		close(stop)
		_ = conn.Close()
		<-clientClosed
	}()

	write := func(msg serverMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.WithError(err).Debug("failed to write websocket message")
			return false
		}
		return true
	}

	for _, t := range topics {
		if !write(serverMessage{Kind: "ack", Action: "subscribe", Topic: t}) {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if !write(serverMessage{Kind: "event", Topic: ev.Topic, Event: &ev}) {
				return
			}
		case msg := <-outbound:
			if !write(msg) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *RealtimeHandler) handleClientMessage(ctx context.Context, sub *changefeed.Subscription, raw []byte, userID, own string, admin bool) serverMessage {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return serverMessage{Kind: "error", Error: "malformed message"}
	}

	reply := serverMessage{Kind: "ack", Action: msg.Action, Topic: msg.Topic}

	switch msg.Action {
	case "subscribe":
		if !AllowedTopic(msg.Topic, userID, admin) {
			return serverMessage{Kind: "error", Action: msg.Action, Topic: msg.Topic, Error: "topic not allowed"}
		}
		if err := sub.Add(ctx, msg.Topic); err != nil {
			return serverMessage{Kind: "error", Action: msg.Action, Topic: msg.Topic, Error: "subscribe failed"}
		}
	case "unsubscribe":
		if msg.Topic == own {
			return serverMessage{Kind: "error", Action: msg.Action, Topic: msg.Topic, Error: "notifications topic is always attached"}
		}
		if err := sub.Remove(ctx, msg.Topic); err != nil {
			return serverMessage{Kind: "error", Action: msg.Action, Topic: msg.Topic, Error: "unsubscribe failed"}
		}
	default:
		return serverMessage{Kind: "error", Action: msg.Action, Error: "unknown action"}
	}
	return reply
}
