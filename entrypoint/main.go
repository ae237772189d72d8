package main

import (
	"healthdatagateway.org/ted/api"
	"healthdatagateway.org/ted/audit"
	"healthdatagateway.org/ted/classify"
	"healthdatagateway.org/ted/document"
	"healthdatagateway.org/ted/logger"
	"healthdatagateway.org/ted/medcat"
	"healthdatagateway.org/ted/pipeline"
	"healthdatagateway.org/ted/redis"
	"healthdatagateway.org/ted/rmq"
	"healthdatagateway.org/ted/types"
	"healthdatagateway.org/ted/vocab"
	"healthdatagateway.org/ted/worker"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"net/http"
	"os"
	"time"
)

type Config struct {
	CategoriesPath            string `envconfig:"TED_CATEGORIES_PATH" default:""`
	RestAPIActive             bool   `envconfig:"TED_REST_API_ACTIVE" default:"true"`
	RestAPIPort               string `envconfig:"TED_REST_API_PORT" default:"8000"`
	WorkerActive              bool   `envconfig:"TED_WORKER_ACTIVE" default:"false"`
	ExpansionActive           bool   `envconfig:"TED_EXPANSION_ACTIVE" default:"true"`
	AuditActive               bool   `envconfig:"TED_AUDIT_ACTIVE" default:"false"`
	AuditServiceName          string `envconfig:"TED_AUDIT_SERVICE_NAME" default:"ted"`
	VocabCacheActive          bool   `envconfig:"TED_VOCAB_CACHE_ACTIVE" default:"false"`
	VocabCacheTTLHours        int    `envconfig:"TED_VOCAB_CACHE_TTL_HOURS" default:"24"`
	SummaryMaxFieldWords      int    `envconfig:"TED_SUMMARY_MAX_FIELD_WORDS" default:"0"`
	SummaryIncludeDescription bool   `envconfig:"TED_SUMMARY_INCLUDE_DESCRIPTION" default:"true"`
}

func main() {
	logger.SetupLogging()
	tedLogger := logger.NewLogger("Main")
	fatalErrLogger := tedLogger.Fatal().Caller()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read environment")
		os.Exit(1)
	}

	categories, err := types.LoadCategories(config.CategoriesPath)
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to load medical categories")
		os.Exit(1)
	}
	tedLogger.Info().Int("category_count", len(categories)).Msg("Loaded medical categories")
	classifier := classify.NewClassifier(categories)

	recognizer, err := medcat.NewClient()
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to create NER client")
		os.Exit(1)
	}

	expander, err := buildExpander(config, &tedLogger)
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to create vocabulary expander")
		os.Exit(1)
	}

	auditor, err := buildAuditor(config, &tedLogger)
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to create audit publisher")
		os.Exit(1)
	}

	summaryOpts := document.SummaryOptions{
		MaxFieldWords:      config.SummaryMaxFieldWords,
		IncludeDescription: config.SummaryIncludeDescription,
	}
	ppln := pipeline.New(recognizer, classifier, expander, auditor, summaryOpts)

	if config.RestAPIActive {
		go func() {
			tedLogger.Info().Msg("Starting API service")
			handlers := &api.Handlers{
				Pipeline:        ppln,
				ExpansionActive: config.ExpansionActive,
			}
			http.HandleFunc("/status", handlers.Status)
			http.HandleFunc("/datasets", handlers.ProcessDataset)
			http.HandleFunc("/datasets_bulk", handlers.ProcessDatasetsBulk)
			http.HandleFunc("/datasets/summary", handlers.ProcessSummary)
			host := fmt.Sprintf(":%s", config.RestAPIPort)
			tedLogger.Info().Msgf("REST API on %s", host)
			err := http.ListenAndServe(host, nil)
			fatalErrLogger.Err(err).Msg("REST API stopped with error")
		}()
	}

	if !config.WorkerActive {
		if !config.RestAPIActive {
			fatalErrLogger.Msg("Neither the REST API nor the worker is active, nothing to do")
			os.Exit(1)
		}
		select {}
	}

	tedLogger.Info().Msg("Starting TED worker")
	for {
		rmqWorker, err := worker.New(ppln)
		if err != nil {
			tedLogger.Fatal().Err(err).Msg("Could not initialize RMQ worker")
			os.Exit(1)
		}
		err = rmqWorker.StartWorker()
		if err != nil {
			tedLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
			time.Sleep(5 * time.Second)
		}
	}
}

func buildExpander(config Config, tedLogger *zerolog.Logger) (pipeline.Expander, error) {
	if !config.ExpansionActive {
		tedLogger.Info().Msg("Vocabulary expansion is disabled")
		return vocab.NopExpander{}, nil
	}
	vocabClient, err := vocab.NewClient()
	if err != nil {
		return nil, err
	}
	var cache *vocab.Cache
	if config.VocabCacheActive {
		redisClient, err := redis.NewClient(vocab.CacheDB)
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(config.VocabCacheTTLHours) * time.Hour
		cache = vocab.NewCache(redisClient, ttl, tedLogger)
		tedLogger.Info().Msg("Vocabulary expansion cache is active")
	}
	return vocab.NewExpander(vocabClient, cache, vocabClient.MaxAttempts()), nil
}

func buildAuditor(config Config, tedLogger *zerolog.Logger) (audit.Publisher, error) {
	if !config.AuditActive {
		tedLogger.Info().Msg("Audit publishing is disabled")
		return audit.Nop(), nil
	}
	publisher, err := rmq.NewPublisher()
	if err != nil {
		return nil, err
	}
	return audit.NewPublisher(publisher, config.AuditServiceName), nil
}
