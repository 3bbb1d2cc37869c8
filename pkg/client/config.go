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

package client

import (
	"os"
	"strconv"

	"github.com/golang/glog"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/etcd"
	"github.com/kaixinbaba/rocketmq-go/pkg/io"
	otelCfg "github.com/kaixinbaba/rocketmq-go/pkg/logging/otel/config"
	"github.com/kaixinbaba/rocketmq-go/pkg/resolver"
	"github.com/kaixinbaba/rocketmq-go/pkg/sec"
	"github.com/kaixinbaba/rocketmq-go/pkg/util"
)

type Duration = util.Duration

// Config decodes from TOML. Resolver, when set, takes precedence over the
// name server fields.
type Config struct {
	GroupName          string
	InstanceName       string
	NameServerAddrs    []string
	NameServerDomain   string
	NameServerInstance string
	ResolverCacheTTL   Duration
	EtcdCluster        string
	Etcd               *etcd.Config
	UseTLS             bool
	TLS                sec.Config
	Outbound           io.OutboundConfig
	OTEL               otelCfg.Config

	Resolver resolver.Resolver `toml:"-"`
}

var defaultConfig = Config{
	NameServerInstance: resolver.DefaultInstance,
	Outbound:           io.DefaultOutboundConfig,
}

func (c *Config) SetDefault() {
	*c = defaultConfig
}

func (c *Config) validate() error {
	if len(c.GroupName) == 0 {
		return errors.NewConfigurationError("GroupName", "not specified")
	}
	if c.NameServerInstance == "" {
		c.NameServerInstance = resolver.DefaultInstance
	}
	if c.InstanceName == "" || c.InstanceName == resolver.DefaultInstance {
		c.InstanceName = strconv.Itoa(os.Getpid())
	}
	if c.ResolverCacheTTL.Duration < 0 {
		return errors.NewConfigurationError("ResolverCacheTTL", "must not be negative")
	}
	c.Outbound.SetDefaultIfNotDefined()
	return nil
}

// newResolver builds the resolver chain described by the config: a fixed
// name server list over etcd or HTTP discovery, optionally cached. The
// returned etcd client, if any, is owned by the caller.
func (c *Config) newResolver() (resolver.Resolver, *etcd.EtcdClient, error) {
	if c.Resolver != nil {
		return c.Resolver, nil, nil
	}
	var base resolver.Resolver
	var etcdCli *etcd.EtcdClient
	if c.Etcd != nil && len(c.Etcd.Endpoints) != 0 {
		var err error
		if etcdCli, err = etcd.NewEtcdClient(c.Etcd); err != nil {
			return nil, nil, err
		}
		base = resolver.NewEtcdResolver(etcdCli, c.EtcdCluster)
	} else if c.NameServerDomain != "" {
		base = resolver.NewHttpResolverWithDomain(c.NameServerInstance, c.NameServerDomain)
	} else {
		base = resolver.NewHttpResolver(c.NameServerInstance)
	}
	var r resolver.Resolver = resolver.NewPassthroughResolver(c.NameServerAddrs, base)
	if c.ResolverCacheTTL.Duration > 0 {
		r = resolver.NewCachedResolver(r, c.ResolverCacheTTL.Duration, resolver.ServeStale())
	}
	glog.V(2).Infof("name server resolver: %s", r.Description())
	return r, etcdCli, nil
}
