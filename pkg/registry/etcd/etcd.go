// Package etcd announces servers under a lease so that a stopped server
// disappears once its TTL runs out.
package etcd

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/addrecho/pkg/codec"
	"github.com/ecstasoy/addrecho/pkg/logging"
)

type Config struct {
	Endpoints   []string
	DialTimeout time.Duration

	KeyPrefix string
	LeaseTTL  int64

	Codec  codec.Codec
	Logger logging.Logger
}

func DefaultConfig() *Config {
	return &Config{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		KeyPrefix:   "/addrecho/services",
		LeaseTTL:    10,
		Codec:       codec.GetOrDefault(codec.NameJSON),
		Logger:      logging.Discard,
	}
}

func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if len(out.Endpoints) == 0 {
		out.Endpoints = d.Endpoints
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = d.DialTimeout
	}
	if out.KeyPrefix == "" {
		out.KeyPrefix = d.KeyPrefix
	}
	out.KeyPrefix = strings.TrimRight(out.KeyPrefix, "/")
	if out.LeaseTTL <= 0 {
		out.LeaseTTL = d.LeaseTTL
	}
	if out.Codec == nil {
		out.Codec = d.Codec
	}
	out.Logger = logging.OrDiscard(out.Logger)
	return &out
}

type EtcdClient struct {
	client *clientv3.Client
	config *Config
}

func NewEtcdClient(config *Config) (*EtcdClient, error) {
	config = config.withDefaults()

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}

	return &EtcdClient{
		client: client,
		config: config,
	}, nil
}

func (ec *EtcdClient) Close() error {
	return ec.client.Close()
}

// callContext bounds one request by DialTimeout. The client waits for a
// ready connection on every call, so an unreachable cluster would
// otherwise block forever.
func (ec *EtcdClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, ec.config.DialTimeout)
}

func (ec *EtcdClient) serviceKey(service, instanceID string) string {
	return serviceKey(ec.config.KeyPrefix, service, instanceID)
}

func (ec *EtcdClient) servicePrefix(service string) string {
	return servicePrefix(ec.config.KeyPrefix, service)
}

func serviceKey(prefix, service, instanceID string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, service, instanceID)
}

func servicePrefix(prefix, service string) string {
	return fmt.Sprintf("%s/%s/", prefix, service)
}
