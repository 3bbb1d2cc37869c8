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

package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/etcd"
)

// ValueLister is the part of *etcd.EtcdClient the resolver needs.
type ValueLister interface {
	GetValuesWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// EtcdResolver lists the addresses stored under one key per name server
// below the cluster prefix.
type EtcdResolver struct {
	cluster string
	kv      ValueLister
}

func NewEtcdResolver(kv ValueLister, cluster string) *EtcdResolver {
	if cluster == "" {
		cluster = DefaultInstance
	}
	return &EtcdResolver{cluster: cluster, kv: kv}
}

func (r *EtcdResolver) Description() string {
	return "etcd:" + etcd.KeyNameServers(r.cluster)
}

func (r *EtcdResolver) Resolve(ctx context.Context) (addrs []string, err error) {
	start := time.Now()
	defer func() { observe(r.Description(), start, addrs, err) }()

	values, err := r.kv.GetValuesWithPrefix(ctx, etcd.KeyNameServers(r.cluster))
	if err != nil {
		return nil, errors.NewUnreachableError(r.Description(), err)
	}
	if len(values) == 0 {
		return nil, errors.NewMalformedError(r.Description(), fmt.Errorf("no name servers registered"))
	}
	return parseAddrList(r.Description(), strings.Join(values, addrSeparator))
}
