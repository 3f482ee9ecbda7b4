// Package kafka 提供了与 Kafka 消息队列交互的功能。
// 这里只承载一类消息：向量孤儿清理任务（CompactionTask）。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"ragpro-go/internal/config"
	"ragpro-go/pkg/log"
	"ragpro-go/pkg/tasks"
)

// TaskProcessor defines the interface for any service that can process a
// compaction task. This decouples the Kafka consumer from the coordinator.
type TaskProcessor interface {
	Compact(ctx context.Context, task tasks.CompactionTask) error
}

// Producer 封装了 Kafka 写入端。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// EnqueueCompaction 发送一个向量清理任务到 Kafka。
func (p *Producer) EnqueueCompaction(ctx context.Context, task tasks.CompactionTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.DocumentID),
		Value: taskBytes,
	})
}

// Close 关闭底层写入端。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理清理任务。
// 失败次数记录在 Redis 中，达到阈值后提交 offset 终止重试。
func StartConsumer(cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "ragpro-compaction-consumer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		var task tasks.CompactionTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理向量清理任务: DocumentID=%s, OwnerID=%d", task.DocumentID, task.OwnerID)
		if err := processor.Compact(context.Background(), task); err != nil {
			log.Errorf("向量清理任务失败: DocumentID=%s, Error: %v", task.DocumentID, err)
			attemptsKey := fmt.Sprintf("compaction:attempts:%s", task.DocumentID)
			attempts, incErr := rdb.Incr(context.Background(), attemptsKey).Result()
			if incErr == nil {
				_ = rdb.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			}
			if incErr != nil {
				// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
				continue
			}
			if attempts >= 3 {
				log.Errorf("向量清理任务多次失败(>=3)，提交 offset 终止重试: DocumentID=%s", task.DocumentID)
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
				}
			}
		} else {
			log.Infof("向量清理任务处理成功: DocumentID=%s", task.DocumentID)
			_ = rdb.Del(context.Background(), fmt.Sprintf("compaction:attempts:%s", task.DocumentID)).Err()
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
