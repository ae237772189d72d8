package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/bsm/redislock"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
	"time"
)

type DB int

type ReleaseLock func() error

// ErrKeyMissing reports that the requested key does not exist.
var ErrKeyMissing = errors.New("redis: key does not exist")

var ctx = context.Background()

type Config struct {
	LockExpirationSeconds   int     `envconfig:"TED_REDIS_LOCK_EXPIRATION" default:"3"`
	Host                    string  `envconfig:"TED_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"TED_REDIS_PORT" required:"true"`
	HASentinelPort          string  `envconfig:"TED_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"TED_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"TED_REDIS_AUTH_PASSWORD" default:""`
	AuthRequired            bool    `envconfig:"TED_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"TED_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"TED_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
}

func NewClient(db DB) (Client, error) {
	cfg, err := readEnvironment()
	if err != nil {
		return Client{}, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		client = createClusterClient(cfg, db)
	} else {
		client = createClient(cfg, db)
	}
	return Client{
		client:         client,
		lockExpiration: time.Duration(cfg.LockExpirationSeconds) * time.Second,
	}, nil
}

func createClusterClient(cfg *Config, db DB) *redis.ClusterClient {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)
	timeout := time.Duration(cfg.HASentinelSocketTimeout) * time.Second
	options := redis.FailoverOptions{
		SentinelAddrs: []string{addr},
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
		MaxRetries:    6,
		DB:            int(db),
		MasterName:    cfg.HASentinelMasterName,
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewFailoverClusterClient(&options)
}

func createClient(cfg *Config, db DB) *redis.Client {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	options := redis.Options{
		Addr:       addr,
		MaxRetries: 6,
		DB:         int(db),
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewClient(&options)
}

func (client Client) GetBytes(key string) ([]byte, error) {
	response := client.client.Get(ctx, key)
	if errors.Is(response.Err(), redis.Nil) {
		return nil, ErrKeyMissing
	}
	if response.Err() != nil {
		return nil, response.Err()
	}
	return response.Bytes()
}

func (client Client) SetBytes(key string, value []byte, expiration time.Duration) error {
	return client.client.Set(ctx, key, value, expiration).Err()
}

func (client Client) GetJSON(key string, doc interface{}) error {
	b, err := client.GetBytes(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, doc)
}

// UpdateJSON runs update against the stored document under a lock and
// writes back only the fields update changed, as a JSON merge patch
// over the raw stored value. Fields owned by other services survive
// untouched even when doc does not model them.
func (client Client) UpdateJSON(key string, doc interface{}, update func()) (err error) {
	releaseLock, err := client.Lock(key)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := releaseLock(); err == nil {
			err = releaseErr
		}
	}()
	raw, err := client.GetBytes(key)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(raw, doc); err != nil {
		return err
	}
	before, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	update()
	after, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return err
	}
	merged, err := jsonpatch.MergePatch(raw, patch)
	if err != nil {
		return err
	}
	return client.SetBytes(key, merged, 0)
}

func (client Client) Lock(key string) (ReleaseLock, error) {
	lockCl := redislock.New(client.client)
	str := redislock.LimitRetry(redislock.LinearBackoff(time.Second), 20)
	lockKey := fmt.Sprintf("lock:%s", key)
	lock, err := lockCl.Obtain(ctx, lockKey, client.lockExpiration, &redislock.Options{RetryStrategy: str})
	if err != nil {
		return nil, err
	}
	return func() error {
		return lock.Release(ctx)
	}, nil
}

func (client Client) Close() error {
	return client.client.Close()
}

func readEnvironment() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
