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

package otel

import (
	"context"
	"testing"
	"time"

	otelCfg "github.com/kaixinbaba/rocketmq-go/pkg/logging/otel/config"
)

func findMetric(t *testing.T, mc *mockCollector, name string) bool {
	t.Helper()
	for _, m := range mc.GetMetrics() {
		if m.GetName() == name {
			return true
		}
	}
	return false
}

func TestConfigValidate(t *testing.T) {
	c := &otelCfg.Config{}
	if err := c.Validate(); err == nil {
		t.Error("expected error without service name")
	}
	c.ServiceName = "svc"
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if c.Port != DEFAULT_OTEL_COLLECTOR_PORT || c.UrlPath != DefaultMetricsPath || len(c.HistogramBuckets.Send) == 0 {
		t.Errorf("defaults not applied: %+v", c)
	}
}

func TestExportToCollector(t *testing.T) {
	// Measurements taken before initialization are dropped silently.
	RecordResolve("passthrough", StatusSuccess, time.Millisecond)

	mc := runMockCollector(t)
	defer mc.Stop()
	host, port := mc.HostPort()

	cfg := &otelCfg.Config{
		Host:        host,
		Port:        port,
		ServiceName: "rocketmq-go-test",
		Enabled:     true,
		Resolution:  60,
	}
	if err := Initialize(cfg); err != nil {
		t.Fatal(err)
	}
	if !IsEnabled() {
		t.Fatal("meter provider not installed")
	}

	RecordSend("orders", "broker-a", StatusSuccess, 20*time.Millisecond)
	RecordSend("orders", "broker-a", StatusSuccess, 30*time.Millisecond)
	RecordSend("orders", "broker-b", StatusTimeout, 3*time.Second)
	RecordOutboundConnection("127.0.0.1:10911", StatusSuccess, 250*time.Microsecond)
	RecordCount(SendRetry, []Tags{{Topic, "orders"}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		PopulateMetricNamePrefix("send"),
		PopulateMetricNamePrefix("outbound_connection"),
		PopulateMetricNamePrefix("send_retry"),
	} {
		if !findMetric(t, mc, name) {
			t.Errorf("metric %s not exported", name)
		}
	}

	var count uint64
	var sum float64
	for _, m := range mc.GetMetrics() {
		if m.GetName() != PopulateMetricNamePrefix("send") {
			continue
		}
		for _, dp := range m.GetHistogram().GetDataPoints() {
			for _, kv := range dp.GetAttributes() {
				if kv.GetKey() == Status && kv.GetValue().GetStringValue() == StatusSuccess {
					count += dp.GetCount()
					sum += dp.GetSum()
				}
			}
		}
	}
	if count != 2 || sum != 50 {
		t.Errorf("success send histogram count=%d sum=%v", count, sum)
	}
}
