package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/pkg/utils/zaplogger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var PostgresChannel = "CH:API:AUTOTRADER:EVENTS"
var RedisChannel = "CH:API:AUTOTRADER:EVENTS"

// PublishService is the notification sink. Notify persists the event
// and raises a pg_notify; a listener goroutine bridges the postgres
// channel to Redis, from where the SSE handler fans out to clients.
type PublishService struct {
	db          *gorm.DB
	redisClient *redis.Client
	pgConnStr   string
}

func NewPublishService(db *gorm.DB, redisClient *redis.Client, pgConnStr string) *PublishService {
	return &PublishService{
		db:          db,
		redisClient: redisClient,
		pgConnStr:   pgConnStr,
	}
}

// Notify persists the event and raises a postgres notification with
// the serialized event as payload. Errors are swallowed after logging:
// the pipeline never blocks or fails on the notification path.
func (s *PublishService) Notify(event models.Event) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		zaplogger.Error("Failed to marshal event payload", zaplogger.Fields{
			"type":  string(event.Type),
			"error": err.Error(),
		})
		return
	}

	record := models.EventModel{
		Type:    string(event.Type),
		Token:   event.Token,
		Symbol:  event.Symbol,
		Payload: payload,
	}
	if err := s.db.Create(&record).Error; err != nil {
		zaplogger.Error("Failed to persist event", zaplogger.Fields{
			"type":  string(event.Type),
			"error": err.Error(),
		})
		return
	}

	message, err := json.Marshal(event)
	if err != nil {
		zaplogger.Error("Failed to marshal event", zaplogger.Fields{
			"type":  string(event.Type),
			"error": err.Error(),
		})
		return
	}
	if err := s.db.Exec("SELECT pg_notify(?, ?)", PostgresChannel, string(message)).Error; err != nil {
		zaplogger.Error("Failed to raise pg_notify", zaplogger.Fields{
			"type":  string(event.Type),
			"error": err.Error(),
		})
	}
}

// PublishEventsToRedisChannel bridges the postgres notification channel
// to Redis. Runs as a long-lived goroutine.
func (s *PublishService) PublishEventsToRedisChannel() {

	listener := pq.NewListener(s.pgConnStr, 10*time.Second, time.Minute, nil)
	err := listener.Listen(PostgresChannel)
	if err != nil {
		zaplogger.Error("Failed to listen on postgres channel", zaplogger.Fields{"error": err})
		return
	}

	ctx := context.Background()

	for {
		select {
		case n := <-listener.Notify:
			if n == nil {
				continue
			}
			err := s.redisClient.Publish(ctx, RedisChannel, n.Extra).Err()
			if err != nil {
				zaplogger.Error("Failed to publish to Redis", zaplogger.Fields{"error": err})
			}
		case <-time.After(90 * time.Second):
			go func() {
				err := listener.Ping()
				if err != nil {
					zaplogger.Error("Error pinging PostgreSQL", zaplogger.Fields{"error": err})
				}
			}()
		}
	}
}
