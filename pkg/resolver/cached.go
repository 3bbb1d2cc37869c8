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
	"sync"
	"time"

	"github.com/golang/glog"
)

// CachedResolver remembers the last good answer of another resolver for ttl.
// With ServeStale a failed refresh returns the last good list instead of the
// error.
type CachedResolver struct {
	inner      Resolver
	ttl        time.Duration
	serveStale bool
	now        func() time.Time

	mtx       sync.Mutex
	addrs     []string
	fetchedAt time.Time
}

type CachedOption func(*CachedResolver)

func ServeStale() CachedOption {
	return func(r *CachedResolver) { r.serveStale = true }
}

func NewCachedResolver(inner Resolver, ttl time.Duration, opts ...CachedOption) *CachedResolver {
	r := &CachedResolver{inner: inner, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *CachedResolver) Description() string {
	return "cached(" + r.inner.Description() + ")"
}

// Invalidate forces the next Resolve to ask the inner resolver.
func (r *CachedResolver) Invalidate() {
	r.mtx.Lock()
	r.fetchedAt = time.Time{}
	r.mtx.Unlock()
}

func (r *CachedResolver) Resolve(ctx context.Context) ([]string, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.addrs != nil && !r.fetchedAt.IsZero() && r.now().Sub(r.fetchedAt) < r.ttl {
		return copyAddrs(r.addrs), nil
	}
	addrs, err := r.inner.Resolve(ctx)
	if err != nil {
		if r.serveStale && r.addrs != nil {
			glog.Warningf("%s: refresh failed, serving stale list: %v", r.Description(), err)
			return copyAddrs(r.addrs), nil
		}
		return nil, err
	}
	r.addrs = copyAddrs(addrs)
	r.fetchedAt = r.now()
	return addrs, nil
}
