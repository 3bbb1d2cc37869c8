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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	otelCfg "github.com/kaixinbaba/rocketmq-go/pkg/logging/otel/config"
)

var currentConfig *otelCfg.Config

// Initialize installs the global meter provider when the config is enabled.
// Until then every Record call is a no-op.
func Initialize(c *otelCfg.Config) (err error) {
	if c == nil {
		return fmt.Errorf("otel config is nil")
	}
	if err = c.Validate(); err != nil {
		glog.Error(err)
		return
	}
	c.Dump()
	if !c.Enabled {
		return
	}
	ctx := context.Background()
	exp, err := NewHTTPExporter(ctx, c)
	if err != nil {
		glog.Errorf("otel exporter: %v", err)
		return
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(time.Duration(c.Resolution)*time.Second))
	return InitMetricProvider(c, reader)
}

// InitMetricProvider installs a meter provider backed by reader.
func InitMetricProvider(c *otelCfg.Config, reader sdkmetric.Reader) error {
	mu.Lock()
	defer mu.Unlock()
	if meterProvider != nil {
		glog.Info("otel meter provider already initialized")
		return nil
	}
	currentConfig = c
	meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(getResourceInfo(c)),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(meterProvider)
	glog.Infof("otel meter provider initialized for %s", c.ServiceName)
	return nil
}

// Shutdown flushes pending measurements.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if meterProvider == nil {
		return nil
	}
	return meterProvider.Shutdown(ctx)
}

func NewHTTPExporter(ctx context.Context, c *otelCfg.Config) (sdkmetric.Exporter, error) {
	var deltaTemporalitySelector = func(sdkmetric.InstrumentKind) metricdata.Temporality { return metricdata.DeltaTemporality }
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(fmt.Sprintf("%s:%d", c.Host, c.Port)),
		otlpmetrichttp.WithURLPath(c.UrlPath),
		otlpmetrichttp.WithTimeout(7 * time.Second),
		otlpmetrichttp.WithCompression(otlpmetrichttp.NoCompression),
		otlpmetrichttp.WithTemporalitySelector(deltaTemporalitySelector),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 1 * time.Second,
			MaxInterval:     10 * time.Second,
			MaxElapsedTime:  240 * time.Second,
		}),
	}
	if !c.UseTls {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}

func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return meterProvider != nil
}

func buckets(h HMetric) []float64 {
	c := currentConfig
	if c == nil {
		return nil
	}
	switch h {
	case SendLatency:
		return c.HistogramBuckets.Send
	case PullLatency:
		return c.HistogramBuckets.Pull
	case ResolveLatency:
		return c.HistogramBuckets.Resolve
	case ConnectLatency:
		return c.HistogramBuckets.Connect
	}
	return nil
}

func GetHistogram(name HMetric) (metric.Int64Histogram, error) {
	h, ok := histMetricMap[name]
	if !ok {
		return nil, errors.New("No Such histogram exists")
	}
	var err error
	h.createHistogram.Do(func() {
		opts := []metric.Int64HistogramOption{
			metric.WithDescription(h.metricDesc),
			metric.WithUnit(h.metricUnit),
		}
		if b := buckets(name); len(b) != 0 {
			opts = append(opts, metric.WithExplicitBucketBoundaries(b...))
		}
		h.histogram, err = otel.Meter(MeterName).Int64Histogram(h.metricName, opts...)
	})
	if h.histogram == nil {
		if err == nil {
			err = errors.New("Histogram Object not Ready")
		}
		return nil, err
	}
	return h.histogram, nil
}

func GetCounter(counterName CMetric) (metric.Int64Counter, error) {
	if counterMetric, ok := countMetricMap[counterName]; ok {
		counterMetric.createCounter.Do(func() {
			counterMetric.counter, _ = otel.Meter(MeterName).Int64Counter(
				PopulateMetricNamePrefix(counterMetric.metricName),
				metric.WithDescription(counterMetric.metricDesc),
			)
		})
		if counterMetric.counter != nil {
			return counterMetric.counter, nil
		}
		return nil, errors.New("Counter Object not Ready")
	}
	return nil, errors.New("No Such counter exists")
}

func record(name HMetric, value int64, attrs ...attribute.KeyValue) {
	if h, err := GetHistogram(name); err == nil {
		h.Record(context.Background(), value, metric.WithAttributes(attrs...))
	}
}

func RecordSend(topic string, broker string, status string, latency time.Duration) {
	record(SendLatency, latency.Milliseconds(),
		attribute.String(Topic, topic),
		attribute.String(Broker, broker),
		attribute.String(Status, status))
}

func RecordPull(topic string, broker string, status string, latency time.Duration) {
	record(PullLatency, latency.Milliseconds(),
		attribute.String(Topic, topic),
		attribute.String(Broker, broker),
		attribute.String(Status, status))
}

func RecordResolve(resolver string, status string, latency time.Duration) {
	record(ResolveLatency, latency.Milliseconds(),
		attribute.String(Resolver, resolver),
		attribute.String(Status, status))
}

func RecordOutboundConnection(endpoint string, status string, latency time.Duration) {
	record(ConnectLatency, latency.Microseconds(),
		attribute.String(Endpoint, endpoint),
		attribute.String(Status, status))
}

func RecordCount(counterName CMetric, tags []Tags) {
	counter, err := GetCounter(counterName)
	if err != nil {
		glog.Error(err)
		return
	}
	if len(tags) != 0 {
		counter.Add(context.Background(), 1, metric.WithAttributes(convertTagsToOTELAttributes(tags)...))
	} else {
		counter.Add(context.Background(), 1)
	}
}

func convertTagsToOTELAttributes(tags []Tags) (attr []attribute.KeyValue) {
	attr = make([]attribute.KeyValue, len(tags))
	for i := 0; i < len(tags); i++ {
		attr[i] = attribute.String(tags[i].TagName, tags[i].TagValue)
	}
	return
}

func PopulateMetricNamePrefix(metricName string) string {
	return ROCKETMQ_METRIC_PREFIX + metricName
}

func getResourceInfo(c *otelCfg.Config) *resource.Resource {
	hostname, _ := os.Hostname()
	return resource.NewWithAttributes(semconv.SchemaURL,
		semconv.HostName(hostname),
		semconv.ServiceName(c.ServiceName),
		semconv.DeploymentEnvironment(c.Environment),
	)
}
