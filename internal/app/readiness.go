package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessWaiter blocks startup until MongoDB and Kafka are reachable and
// answers readiness probes afterwards.
type ReadinessWaiter struct {
	mongoClient *mongo.Client
	brokers     []string
	topic       string
	catalog     Pinger
}

func NewReadinessWaiter(mongoClient *mongo.Client, brokers []string, topic string, catalog Pinger) *ReadinessWaiter {
	return &ReadinessWaiter{
		mongoClient: mongoClient,
		brokers:     brokers,
		topic:       topic,
		catalog:     catalog,
	}
}

func (w *ReadinessWaiter) WaitForDependencies(ctx context.Context) error {
	if err := w.waitForMongo(ctx); err != nil {
		return err
	}
	if err := w.waitForKafka(ctx); err != nil {
		return err
	}
	return nil
}

// Check probes every dependency once. The result maps each dependency to
// "ok" or its error; ready is false when any probe failed. The catalog is
// reported but does not gate readiness: feeds surface its failures themselves.
func (w *ReadinessWaiter) Check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	status := make(map[string]string, 3)
	ready := true
	record := func(name string, err error, gating bool) {
		if err != nil {
			status[name] = err.Error()
			if gating {
				ready = false
			}
			return
		}
		status[name] = "ok"
	}

	if w.mongoClient != nil {
		record("mongodb", w.mongoClient.Ping(ctx, readpref.Primary()), true)
	}
	if len(w.brokers) > 0 {
		record("kafka", w.checkKafka(ctx), true)
	}
	if w.catalog != nil {
		record("catalog", w.catalog.Ping(ctx), false)
	}
	return status, ready
}

func (w *ReadinessWaiter) waitForMongo(ctx context.Context) error {
	slog.Info("Waiting for MongoDB...")
	// Poll every 2 seconds until ready or ctx is cancelled.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
				slog.Warn("MongoDB not ready yet", "error", err)
				continue
			}
			slog.Info("MongoDB is ready")
			return nil
		}
	}
}

func (w *ReadinessWaiter) waitForKafka(ctx context.Context) error {
	slog.Info("Waiting for Kafka...")
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.checkKafka(ctx); err != nil {
				slog.Warn("Kafka not ready yet", "error", err)
				continue
			}
			slog.Info("Kafka is ready")
			return nil
		}
	}
}

func (w *ReadinessWaiter) checkKafka(ctx context.Context) error {
	// 1. Check TCP connection to brokers
	for _, broker := range w.brokers {
		var d net.Dialer
		dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		conn, err := d.DialContext(dialCtx, "tcp", broker)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to broker %s: %w", broker, err)
		}
		_ = conn.Close()
	}

	// 2. Check if topic exists
	// We verify against the first broker for simplicity
	if len(w.brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", w.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	partitions, err := conn.ReadPartitions(w.topic)
	if err != nil {
		// If topic doesn't exist, this usually returns an error or empty partitions
		// Note: segmentio/kafka-go might return UnknownTopicOrPartition error
		return fmt.Errorf("failed to read partitions for topic %s: %w", w.topic, err)
	}

	if len(partitions) == 0 {
		return fmt.Errorf("topic %s has no partitions", w.topic)
	}

	return nil
}
