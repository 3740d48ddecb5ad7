// logkeeper drains the server's access-log topic from Kafka and indexes
// each entry into Elasticsearch, where the request history can be queried.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"listens/pkg/api"
)

type Config struct {
	LogLevel     string   `toml:"logLevel"`
	KafkaBrokers []string `toml:"kafkaBrokers"`
	KafkaTopic   string   `toml:"kafkaTopic"`
	KafkaGroupID string   `toml:"kafkaGroupID"`

	ElasticSearchIndex string   `toml:"elasticSearchIndex"`
	ElasticSearchNodes []string `toml:"elasticSearchNodes"`

	NumWorkers int `toml:"numWorkers"`
}

func main() {
	var (
		configPath string
		logLevel   string
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("[logkeeper] shutting down gracefully...")
		cancel()
	}()

	flag.StringVar(&configPath, "config", "cmd/logkeeper/config.toml", "Path to TOML config file")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.Parse()

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Fatalf("[logkeeper] failed to load config file %s: %v", configPath, err)
	}

	// Override config with flags if set
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 2
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.ElasticSearchNodes})
	if err != nil {
		log.Fatalf("[logkeeper] error creating the client: %s", err)
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	defer r.Close()

	jobs := make(chan kafka.Message, cfg.NumWorkers*5) // buffer is needed to increase throughput
	var wg sync.WaitGroup
	wg.Add(cfg.NumWorkers)
	for workerID := 0; workerID < cfg.NumWorkers; workerID++ {
		go func(id int) {
			defer wg.Done()
			indexWorker(ctx, es, jobs, cfg.ElasticSearchIndex, id)
		}(workerID)
	}

	log.Info("[logkeeper] accepting access logs...")
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			log.Errorf("[logkeeper] failed to read message from Kafka: %v", err)
			continue
		}
		log.Debugf("[logkeeper] received message: %s", string(msg.Value))

		jobs <- msg
	}

	close(jobs)
	wg.Wait()
}

// indexWorker drains jobs until the channel closes or the context is
// cancelled, indexing one document per access-log entry. The document ID is
// service + request ID, so redelivered Kafka messages overwrite instead of
// duplicating.
func indexWorker(ctx context.Context, es *elasticsearch.Client, jobs <-chan kafka.Message, index string, workerID int) {
	for {
		select {
		case <-ctx.Done():
			log.Infof("[logkeeper][workerID:%d] context cancelled, exiting worker", workerID)
			return

		case msg, ok := <-jobs:
			if !ok {
				log.Infof("[logkeeper][workerID:%d] jobs channel closed, exiting worker", workerID)
				return
			}

			var entry api.LogEntry
			if err := json.Unmarshal(msg.Value, &entry); err != nil {
				log.Errorf("[logkeeper][workerID:%d] failed to unmarshal log entry: %v", workerID, err)
				continue
			}

			res, err := es.Index(
				index,
				strings.NewReader(string(msg.Value)),
				es.Index.WithDocumentID(entry.Service+entry.RequestID),
			)
			if res != nil {
				res.Body.Close()
			}
			if err != nil || (res != nil && res.IsError()) {
				log.Errorf("[logkeeper][workerID:%d] failed to index document: %v", workerID, err)
			} else {
				log.Infof("[logkeeper][workerID:%d][%s] access-log entry indexed", workerID, shorten(entry.RequestID))
			}
		}
	}
}

func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
