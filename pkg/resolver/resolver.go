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

/*
Package resolver discovers the name server addresses a client talks to.

A Resolver returns a fresh copy of the address list on every call. Failures
are reported as *errors.ResolveError so callers can tell an unreachable
source from a malformed answer.
*/
package resolver

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
	"github.com/kaixinbaba/rocketmq-go/pkg/logging"
	"github.com/kaixinbaba/rocketmq-go/pkg/logging/otel"
)

type Resolver interface {
	Resolve(ctx context.Context) ([]string, error)
	Description() string
}

const addrSeparator = ";"

// parseAddrList splits a ';' separated list. Every entry must be host:port
// with a numeric port.
func parseAddrList(desc string, raw string) ([]string, error) {
	var addrs []string
	for _, item := range strings.Split(raw, addrSeparator) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if err := checkAddr(item); err != nil {
			return nil, errors.NewMalformedError(desc, err)
		}
		addrs = append(addrs, item)
	}
	if len(addrs) == 0 {
		return nil, errors.NewMalformedError(desc, fmt.Errorf("empty name server list"))
	}
	return addrs, nil
}

func checkAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("missing host in %q", addr)
	}
	if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("bad port in %q", addr)
	}
	return nil
}

func copyAddrs(addrs []string) []string {
	if addrs == nil {
		return nil
	}
	out := make([]string, len(addrs))
	copy(out, addrs)
	return out
}

func observe(desc string, start time.Time, addrs []string, err error) {
	status := otel.StatusSuccess
	if err != nil {
		status = otel.StatusError
		otel.RecordCount(otel.ResolveFail, []otel.Tags{{TagName: otel.Resolver, TagValue: desc}})
	}
	otel.RecordResolve(desc, status, time.Since(start))
	if logging.LOG_DEBUG {
		b := logging.NewKVBufferForLog()
		b.AddResolver(desc).Add([]byte("addrs"), strings.Join(addrs, addrSeparator))
		if err != nil {
			b.Add([]byte("err"), err.Error())
		}
		glog.Infof("resolve %s", b.String())
	}
}
