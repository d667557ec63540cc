package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/nexusdesk/nexus-core/internal/channel"
	"github.com/nexusdesk/nexus-core/internal/config"
	"github.com/nexusdesk/nexus-core/internal/conversation"
	"github.com/nexusdesk/nexus-core/internal/db"
	"github.com/nexusdesk/nexus-core/internal/logx"
	"github.com/nexusdesk/nexus-core/internal/speech"
	"github.com/nexusdesk/nexus-core/internal/store/rabbitmq"
	"github.com/nexusdesk/nexus-core/internal/store/redisstore"
	"github.com/nexusdesk/nexus-core/internal/tasks"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()
	logx.Init(cfg.LogDebug, cfg.LogPretty)

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit publisher")
	}
	defer pub.Close()

	handler := tasks.NewHandler(
		conversation.NewRepo(gdb),
		channel.NewMediaClient(cfg.WhatsAppAPIBase, cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID, cfg.MediaRoot),
		speech.NewASRClient(cfg.ASRBaseURL),
		speech.NewTTSClient(cfg.TTSBaseURL, cfg.TTSVoice, cfg.MediaRoot),
		pub,
	)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit channel")
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatal().Err(err).Msg("queue declare")
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal().Err(err).Msg("qos")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", concurrency).Msg("worker started")

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var tm rabbitmq.TaskMessage
				if err := json.Unmarshal(d.Body, &tm); err != nil || tm.Name == "" {
					log.Error().Err(err).Int("worker", workerID).Msg("bad task message")
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				err := handler.Handle(ctx, tm)
				rds.IncrSpeechTask(ctx, tm.Name, err == nil)
				if err != nil {
					log.Error().Err(err).
						Int("worker", workerID).
						Str("task", tm.Name).
						Str("task_id", tm.TaskID).
						Dur("cost", time.Since(start)).
						Msg("task failed")
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Error().Err(err).Int("worker", workerID).Str("task_id", tm.TaskID).Msg("ack failed")
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn().Msg("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
