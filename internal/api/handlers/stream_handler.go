package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/autotraderapi/internal/service"
	"github.com/redis/go-redis/v9"
)

// StreamHandler streams notification events to clients over SSE. The
// events arrive on the Redis channel fed by the postgres bridge.
type StreamHandler struct {
	redisClient *redis.Client
}

// NewStreamHandler creates a new handler for the stream API
func NewStreamHandler(redisClient *redis.Client) *StreamHandler {
	return &StreamHandler{redisClient: redisClient}
}

// StreamEvents relays the event channel to the client until it
// disconnects. Slow consumers miss events rather than backing up the
// pipeline.
func (h *StreamHandler) StreamEvents(c echo.Context) error {
	ctx := c.Request().Context()

	pubsub := h.redisClient.Subscribe(ctx, service.RedisChannel)
	defer pubsub.Close()

	// Set headers for SSE
	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	// Send an initial message to establish the connection
	if _, err := c.Response().Write([]byte("data: connected\n\n")); err != nil {
		return nil
	}
	c.Response().Flush()

	messages := pubsub.Channel()
	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if _, err := c.Response().Write([]byte(fmt.Sprintf("data: %s\n\n", msg.Payload))); err != nil {
				return nil
			}
			c.Response().Flush()
		case <-keepAlive.C:
			if _, err := c.Response().Write([]byte(": keep-alive\n\n")); err != nil {
				return nil
			}
			c.Response().Flush()
		}
	}
}
