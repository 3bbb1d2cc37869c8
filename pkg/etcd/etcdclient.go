//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package etcd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang/glog"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
)

var (
	errNotInitialized = errors.New("etcd client not initialized")
)

// EtcdClient reads and writes keys below EtcdKeyPrefix.
type EtcdClient struct {
	config Config
	client *clientv3.Client
	kv     clientv3.KV
}

func NewEtcdClient(cfg *Config) (*EtcdClient, error) {
	var client *clientv3.Client
	var err error

	attempts := cfg.MaxConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		client, err = clientv3.New(cfg.Config)
		if err == nil {
			break
		}
		if client != nil {
			client.Close()
		}
		if i >= attempts-1 {
			glog.Warningf("etcd: %v.", err)
			return nil, err
		}

		glog.Warningf("etcd: %v. Retry ...", err)
		backoff := (i + 1) * 2
		if backoff > cfg.MaxConnectBackoff {
			backoff = cfg.MaxConnectBackoff
		}
		time.Sleep(time.Duration(backoff) * time.Second)
	}

	return &EtcdClient{
		config: *cfg,
		client: client,
		kv:     namespace.NewKV(client.KV, cfg.EtcdKeyPrefix),
	}, nil
}

// NewEtcdClientWithKV wraps an existing KV. Keys are used as given.
func NewEtcdClientWithKV(kv clientv3.KV, cfg *Config) *EtcdClient {
	return &EtcdClient{config: *cfg, kv: kv}
}

func (e *EtcdClient) Close() {
	if e.client != nil {
		e.client.Close()
	}
}

func (e *EtcdClient) get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if e.kv == nil {
		return nil, errNotInitialized
	}
	if e.config.RequestTimeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.RequestTimeout.Duration)
		defer cancel()
	}
	return e.kv.Get(ctx, key, opts...)
}

func (e *EtcdClient) GetValue(ctx context.Context, key string) (string, error) {
	resp, err := e.get(ctx, key)
	if err != nil {
		glog.Errorf("etcd get %s: %v", key, err)
		return "", err
	}
	if resp == nil || len(resp.Kvs) == 0 {
		return "", fmt.Errorf("key '%s' not found", key)
	}
	return string(resp.Kvs[0].Value), nil
}

// GetValuesWithPrefix returns the values of all keys starting with prefix,
// ordered by key.
func (e *EtcdClient) GetValuesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	resp, err := e.get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		glog.Errorf("etcd get prefix %s: %v", prefix, err)
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	kvs := resp.Kvs
	sort.SliceStable(kvs, func(i, j int) bool { return string(kvs[i].Key) < string(kvs[j].Key) })
	values := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		values = append(values, string(kv.Value))
	}
	return values, nil
}

func (e *EtcdClient) PutValue(ctx context.Context, key string, val string) error {
	if e.kv == nil {
		return errNotInitialized
	}
	if e.config.RequestTimeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.RequestTimeout.Duration)
		defer cancel()
	}
	glog.V(2).Infof("etcd put: key=%s%s val=%s", e.config.EtcdKeyPrefix, key, val)
	_, err := e.kv.Put(ctx, key, val)
	return err
}
