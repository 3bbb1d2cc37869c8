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
	"io"
	"net/http"
	"os"
	"time"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
)

const (
	DefaultInstance    = "DEFAULT"
	DefaultNsAddrURL   = "http://jmenv.tbsite.net:8080/rocketmq/nsaddr"
	DefaultHttpTimeout = 3 * time.Second

	EnvNsDomain = "NAMESRV_DOMAIN"

	maxBodySize = 64 * 1024
)

// HttpResolver fetches the name server list from a well known URL. It does
// not cache.
type HttpResolver struct {
	instance string
	domain   string
	client   *http.Client
}

// NewHttpResolver targets NAMESRV_DOMAIN when set, the default URL otherwise.
func NewHttpResolver(instance string) *HttpResolver {
	domain := os.Getenv(EnvNsDomain)
	if domain == "" {
		domain = DefaultNsAddrURL
	}
	return NewHttpResolverWithDomain(instance, domain)
}

func NewHttpResolverWithDomain(instance string, domain string) *HttpResolver {
	if instance == "" {
		instance = DefaultInstance
	}
	return &HttpResolver{
		instance: instance,
		domain:   domain,
		client:   &http.Client{Timeout: DefaultHttpTimeout},
	}
}

// WithClient replaces the HTTP client, e.g. to change the timeout.
func (r *HttpResolver) WithClient(c *http.Client) *HttpResolver {
	r.client = c
	return r
}

func (r *HttpResolver) URL() string {
	if r.instance == DefaultInstance {
		return r.domain
	}
	return r.domain + "-" + r.instance
}

func (r *HttpResolver) Description() string {
	return "http:" + r.URL()
}

func (r *HttpResolver) Resolve(ctx context.Context) (addrs []string, err error) {
	start := time.Now()
	defer func() { observe(r.Description(), start, addrs, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL(), nil)
	if err != nil {
		return nil, errors.NewMalformedError(r.Description(), err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.NewUnreachableError(r.Description(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.NewUnreachableError(r.Description(), err)
	}
	if resp.StatusCode >= 500 {
		return nil, errors.NewUnreachableError(r.Description(), fmt.Errorf("http status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewMalformedError(r.Description(), fmt.Errorf("http status %d", resp.StatusCode))
	}
	return parseAddrList(r.Description(), string(body))
}
