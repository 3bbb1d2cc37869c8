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
	"os"
	"time"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
)

const EnvNsAddr = "NAMESRV_ADDR"

// EnvResolver reads a ';' separated list from an environment variable.
type EnvResolver struct {
	name string
}

func NewEnvResolver() *EnvResolver {
	return &EnvResolver{name: EnvNsAddr}
}

func NewEnvResolverWithName(name string) *EnvResolver {
	return &EnvResolver{name: name}
}

func (r *EnvResolver) Description() string {
	return "env:" + r.name
}

func (r *EnvResolver) Resolve(ctx context.Context) (addrs []string, err error) {
	start := time.Now()
	defer func() { observe(r.Description(), start, addrs, err) }()

	v, ok := os.LookupEnv(r.name)
	if !ok {
		return nil, errors.NewMalformedError(r.Description(), fmt.Errorf("%s is not set", r.name))
	}
	return parseAddrList(r.Description(), v)
}
