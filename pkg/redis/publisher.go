package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

var logger = log.With().Str("component", "redis").Logger()

// Publisher 把当前状态写入 key 并广播到 channel
// 新订阅者可以先 GET key 拿到最新状态
type Publisher struct {
	client  *Client
	key     string
	channel string
	timeout time.Duration
}

// NewPublisher 创建 Publisher
func NewPublisher(client *Client, key, channel string) *Publisher {
	return &Publisher{client: client, key: key, channel: channel, timeout: 2 * time.Second}
}

// Publish 序列化 v 并发布，key 不过期
func (p *Publisher) Publish(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.SetAndPublish(ctx, p.key, p.channel, payload, 0); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	logger.Debug().Str("key", p.key).Str("channel", p.channel).Int("bytes", len(payload)).Msg("Published state")
	return nil
}

// Close 关闭底层连接
func (p *Publisher) Close() error {
	return p.client.Close()
}
