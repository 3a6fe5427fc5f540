package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"shop-svc/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ProductCacheInvalidator interface {
	DeleteProducts(ctx context.Context, ids ...int64) error
}

func InitConsumer(brokers []string, logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized")
	return consumer, nil
}

// StartConsumer reads every partition of topic. Paid orders drop cached
// product entries and each order event notifies the customer. It returns
// once ctx is cancelled or all partition streams are closed.
func StartConsumer(ctx context.Context, consumer sarama.Consumer, topic string, invalidator ProductCacheInvalidator, logger *zap.Logger) error {
	partitions, err := consumer.Partitions(topic)
	if err != nil {
		return fmt.Errorf("failed to list partitions: %w", err)
	}

	partitionConsumers := make([]sarama.PartitionConsumer, 0, len(partitions))
	for _, partition := range partitions {
		pc, err := consumer.ConsumePartition(topic, partition, sarama.OffsetNewest)
		if err != nil {
			for _, opened := range partitionConsumers {
				opened.Close()
			}
			return fmt.Errorf("failed to consume partition %d: %w", partition, err)
		}
		partitionConsumers = append(partitionConsumers, pc)
	}

	logger.Info("Kafka consumer started", zap.String("topic", topic), zap.Int("partitions", len(partitions)))

	var wg sync.WaitGroup
	for i, pc := range partitionConsumers {
		wg.Add(1)
		go func(partition int32, pc sarama.PartitionConsumer) {
			defer wg.Done()
			defer pc.Close()
			consumePartition(ctx, pc, invalidator, logger.With(zap.Int32("partition", partition)))
		}(partitions[i], pc)
	}
	wg.Wait()
	return nil
}

func consumePartition(ctx context.Context, pc sarama.PartitionConsumer, invalidator ProductCacheInvalidator, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-pc.Messages():
			if !ok {
				return
			}
			if err := handleMessageWithRetry(ctx, message, invalidator, logger, maxHandleAttempts); err != nil {
				logger.Error("Failed to handle message after retries", zap.Error(err))
			}
		case err, ok := <-pc.Errors():
			if !ok {
				return
			}
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}
}

const maxHandleAttempts = 3

var retryBackoff = time.Second

func handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage, invalidator ProductCacheInvalidator, logger *zap.Logger, maxAttempts int) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := handleMessage(message, invalidator, logger)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		backoff := time.Duration(attempt) * retryBackoff
		logger.Warn("Retrying message handling",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

func handleMessage(message *sarama.ConsumerMessage, invalidator ProductCacheInvalidator, logger *zap.Logger) error {
	// Extract trace context from Kafka message headers
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), consumerHeaderCarrier(message.Headers))

	ctx, span := otel.Tracer("shop-svc").Start(ctx, "ProcessOrderEvent")
	defer span.End()

	var event models.OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.Int64("order.id", event.OrderID),
	)

	if event.EventType != models.EventOrderPaid || len(event.ProductIDs) == 0 {
		notify(ctx, event, logger)
		return nil
	}

	if err := invalidator.DeleteProducts(ctx, event.ProductIDs...); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to invalidate product cache: %w", err)
	}

	logger.Info("Product cache invalidated",
		zap.String("trace_id", traceID(ctx)),
		zap.Int64("order_id", event.OrderID),
		zap.Int64s("product_ids", event.ProductIDs),
	)
	notify(ctx, event, logger)
	return nil
}
