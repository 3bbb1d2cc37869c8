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
	"sync"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	SendRetry CMetric = CMetric(iota)
	SendFail
	SendOneway
	ConnAccept
	ConnClose
	ResolveFail
)

const (
	Topic     = string("topic")
	Broker    = string("broker")
	Endpoint  = string("endpoint")
	Operation = string("operation")
	Resolver  = string("resolver")
	Status    = string("status")
	Group     = string("group")
)

// OTEl Status
const (
	StatusSuccess string = "SUCCESS"
	StatusFatal   string = "FATAL"
	StatusError   string = "ERROR"
	StatusWarning string = "WARNING"
	StatusTimeout string = "TIMEOUT"
	StatusUnknown string = "UNKNOWN"
)

const DEFAULT_OTEL_COLLECTOR_PORT uint32 = 4318

const ROCKETMQ_METRIC_PREFIX = "rocketmq.client."
const MeterName = "rocketmq-client-meter"

var (
	sendHistogramOnce    sync.Once
	pullHistogramOnce    sync.Once
	resolveHistogramOnce sync.Once
	connectHistogramOnce sync.Once

	sendRetryCounterOnce   sync.Once
	sendFailCounterOnce    sync.Once
	sendOnewayCounterOnce  sync.Once
	connAcceptCounterOnce  sync.Once
	connCloseCounterOnce   sync.Once
	resolveFailCounterOnce sync.Once
)

var countMetricMap map[CMetric]*countMetric = map[CMetric]*countMetric{
	SendRetry:   {"send_retry", "Send attempts retried after a retryable failure", nil, &sendRetryCounterOnce},
	SendFail:    {"send_fail", "Sends that failed after all attempts", nil, &sendFailCounterOnce},
	SendOneway:  {"send_oneway", "One way sends written to a broker", nil, &sendOnewayCounterOnce},
	ConnAccept:  {"conn_open", "Broker connections established", nil, &connAcceptCounterOnce},
	ConnClose:   {"conn_close", "Broker connections closed", nil, &connCloseCounterOnce},
	ResolveFail: {"resolve_fail", "Name server resolutions that failed", nil, &resolveFailCounterOnce},
}

var histMetricMap map[HMetric]*histogramMetric = map[HMetric]*histogramMetric{
	SendLatency:    {PopulateMetricNamePrefix("send"), "Histogram for message send", "ms", nil, &sendHistogramOnce},
	PullLatency:    {PopulateMetricNamePrefix("pull"), "Histogram for message pull", "ms", nil, &pullHistogramOnce},
	ResolveLatency: {PopulateMetricNamePrefix("resolve"), "Histogram for name server resolution", "ms", nil, &resolveHistogramOnce},
	ConnectLatency: {PopulateMetricNamePrefix("outbound_connection"), "Histogram for broker connect", "us", nil, &connectHistogramOnce},
}

var (
	meterProvider *sdkmetric.MeterProvider
	mu            sync.Mutex
)

type CMetric int

type HMetric int

const (
	SendLatency HMetric = HMetric(iota)
	PullLatency
	ResolveLatency
	ConnectLatency
)

type Tags struct {
	TagName  string
	TagValue string
}

type countMetric struct {
	metricName    string
	metricDesc    string
	counter       metric.Int64Counter
	createCounter *sync.Once
}

type histogramMetric struct {
	metricName      string
	metricDesc      string
	metricUnit      string
	histogram       metric.Int64Histogram
	createHistogram *sync.Once
}
