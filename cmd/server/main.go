package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"listens/pkg/api"
	"listens/pkg/geocode"
	"listens/pkg/storage"
	"listens/pkg/storage/memdb"
	"listens/pkg/storage/mongo"
	"listens/pkg/storage/postgres"
)

type Config struct {
	ServiceName string `toml:"serviceName"`

	HTTPAddr        string `toml:"httpAddr"`
	LogLevel        string `toml:"logLevel"`
	DB              string `toml:"db"`
	MaxEntries      int    `toml:"maxEntries"`
	DisplayTimezone string `toml:"displayTimezone"`

	GeocodeURL       string `toml:"geocodeURL"`
	GeocodeUserAgent string `toml:"geocodeUserAgent"`

	KafkaAddr  string `toml:"kafkaAddr"`
	KafkaTopic string `toml:"kafkaTopic"`
	KafkaBatch int    `toml:"kafkaBatch"`
}

func main() {
	var (
		configPath string
		httpAddr   string
		logLevel   string
		dbKind     string
		dev        bool
	)

	flag.StringVar(&configPath, "servconf", "cmd/server/config.toml", "Path to TOML config file")
	flag.StringVar(&httpAddr, "http", "", "HTTP server address in the form 'host:port'.")
	flag.StringVar(&logLevel, "log", "", "Log level: debug, info, warn, error.")
	flag.StringVar(&dbKind, "db", "", "Storage backend: mem, postgres or mongo.")
	flag.BoolVar(&dev, "dev", false, "Run with in-memory DB and no outbound geocoding.")
	flag.Parse()

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Fatalf("[server] failed to load config file %s: %v", configPath, err)
	}

	// Override config with flags if set
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dbKind != "" {
		cfg.DB = dbKind
	}
	if dev {
		cfg.DB = "mem"
	}

	if !strings.Contains(cfg.HTTPAddr, ":") {
		log.Warn("[server] use ':' before port number, e.g. ':8080'")
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

	sdb, closeDB, err := openStorage(cfg.DB)
	if err != nil {
		log.Fatal(err)
	}
	defer closeDB()

	var geo geocode.Geocoder = geocode.Noop{}
	if !dev {
		geo = geocode.NewNominatim(cfg.GeocodeURL, cfg.GeocodeUserAgent)
	}

	var kafkaWriter *kafka.Writer
	if cfg.KafkaAddr != "" && cfg.KafkaTopic != "" {
		kafkaWriter = &kafka.Writer{
			Addr:      kafka.TCP(cfg.KafkaAddr),
			Topic:     cfg.KafkaTopic,
			BatchSize: cfg.KafkaBatch,
		}
		defer kafkaWriter.Close()

		if err := createTopic(kafkaWriter.Addr.String(), kafkaWriter.Topic); err != nil {
			log.Warnf("[server] failed to create Kafka topic: %v", err)
		}
	} else {
		log.Warn("[server] kafka was not configured, access logs will not be sent to Kafka")
	}

	apiConf := api.Config{
		ServiceName:     cfg.ServiceName,
		MaxEntries:      cfg.MaxEntries,
		DisplayTimezone: cfg.DisplayTimezone,
	}
	api, err := api.New(apiConf, sdb, geo, kafkaWriter)
	if err != nil {
		log.Fatalf("[server] failed to create API: %v", err)
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Infof("[server] starting on %v", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP server shutdown error: %v", err)
	} else {
		log.Info("[server] HTTP server shut down gracefully")
	}
}

// openStorage selects and connects the storage backend. The returned close
// function is safe to call once, after the server has stopped.
func openStorage(kind string) (storage.Storage, func(), error) {
	switch kind {
	case "", "mem":
		log.Info("[server] using in-memory DB")
		return memdb.New(), func() {}, nil

	case "postgres":
		conf := postgres.Config{
			User:     "postgres",
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     os.Getenv("POSTGRES_PORT"),
			DBName:   "listens",
		}
		if !conf.IsValid() {
			return nil, nil, fmt.Errorf("invalid postgres config: %+v", conf)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := postgres.New(ctx, conf.ConString())
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
		}
		log.Infof("[server] connected to postgres: %s", conf)
		return db, db.Close, nil

	case "mongo":
		conf, err := mongo.NewConfig()
		if err != nil {
			return nil, nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := mongo.New(ctx, conf)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", storage.ErrDBNotResponding, err)
		}
		log.Infof("[server] connected to mongo at %s:%s", conf.Host, conf.Port)
		closeFn := func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			db.Close(closeCtx)
		}
		return db, closeFn, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", kind)
}

func createTopic(broker, topic string) error {
	conn, err := kafka.DialContext(context.Background(), "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	return conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
