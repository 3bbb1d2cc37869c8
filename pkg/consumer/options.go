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

package consumer

import (
	"time"

	"github.com/kaixinbaba/rocketmq-go/pkg/client"
	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/resolver"
)

const (
	DefaultPullTimeout   = 10 * time.Second
	DefaultPullBatchSize = 32
	DefaultSubExpression = "*"
	maxPullBatchSize     = 1024
)

type Options struct {
	PullTimeout   time.Duration
	PullBatchSize int
	Resolver      resolver.Resolver
	InstanceName  string
	ClientConfig  client.Config
}

type Option func(*Options)

func defaultOptions() Options {
	opts := Options{
		PullTimeout:   DefaultPullTimeout,
		PullBatchSize: DefaultPullBatchSize,
	}
	opts.ClientConfig.SetDefault()
	return opts
}

func WithPullTimeout(d time.Duration) Option {
	return func(o *Options) { o.PullTimeout = d }
}

// WithPullBatchSize sets the number of messages asked for when Pull is
// called with maxNums <= 0.
func WithPullBatchSize(n int) Option {
	return func(o *Options) { o.PullBatchSize = n }
}

func WithResolver(r resolver.Resolver) Option {
	return func(o *Options) { o.Resolver = r }
}

func WithNameServer(addrs ...string) Option {
	return func(o *Options) {
		o.Resolver = resolver.NewPassthroughResolver(addrs, resolver.NewHttpResolver(resolver.DefaultInstance))
	}
}

func WithInstanceName(name string) Option {
	return func(o *Options) { o.InstanceName = name }
}

func WithClientConfig(conf client.Config) Option {
	return func(o *Options) { o.ClientConfig = conf }
}

func (o *Options) validate() error {
	if o.PullTimeout <= 0 {
		return errors.NewConfigurationError("PullTimeout", "must be positive, got %v", o.PullTimeout)
	}
	if o.PullBatchSize <= 0 || o.PullBatchSize > maxPullBatchSize {
		return errors.NewConfigurationError("PullBatchSize", "must be in [1, %d], got %d", maxPullBatchSize, o.PullBatchSize)
	}
	return nil
}
