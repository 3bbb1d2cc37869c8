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

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
)

// PassthroughResolver returns a fixed list, or defers to fallback when the
// list is empty.
type PassthroughResolver struct {
	addrs    []string
	fallback Resolver
}

func NewPassthroughResolver(addrs []string, fallback Resolver) *PassthroughResolver {
	return &PassthroughResolver{addrs: copyAddrs(addrs), fallback: fallback}
}

func (r *PassthroughResolver) Description() string {
	if len(r.addrs) == 0 && r.fallback != nil {
		return "passthrough(" + r.fallback.Description() + ")"
	}
	return "passthrough:" + strings.Join(r.addrs, addrSeparator)
}

func (r *PassthroughResolver) Resolve(ctx context.Context) ([]string, error) {
	if len(r.addrs) != 0 {
		return copyAddrs(r.addrs), nil
	}
	if r.fallback == nil {
		return nil, errors.NewMalformedError(r.Description(), fmt.Errorf("no address and no fallback"))
	}
	return r.fallback.Resolve(ctx)
}
