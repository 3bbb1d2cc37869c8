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
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"google.golang.org/protobuf/proto"

	collectormetricpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"
)

const DefaultMetricsPath string = "/v1/metrics"

type mockCollector struct {
	server *httptest.Server

	lock           sync.Mutex
	metricsStorage MetricsStorage
}

func (c *mockCollector) Stop() {
	c.server.Close()
}

func (c *mockCollector) GetMetrics() []*metricpb.Metric {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.metricsStorage.GetMetrics()
}

func (c *mockCollector) HostPort() (string, uint32) {
	u, _ := url.Parse(c.server.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return host, uint32(port)
}

func (c *mockCollector) serveMetrics(w http.ResponseWriter, r *http.Request) {
	response := collectormetricpb.ExportMetricsServiceResponse{}
	rawResponse, err := proto.Marshal(&response)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	rawRequest, err := readRequest(r)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	request, err := unmarshalMetricsRequest(rawRequest, r.Header.Get("content-type"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rawResponse)

	c.lock.Lock()
	defer c.lock.Unlock()
	c.metricsStorage.AddMetrics(request)
}

func unmarshalMetricsRequest(rawRequest []byte, contentType string) (*collectormetricpb.ExportMetricsServiceRequest, error) {
	request := &collectormetricpb.ExportMetricsServiceRequest{}
	if contentType != "application/x-protobuf" {
		return request, fmt.Errorf("invalid content-type: %s, only application/x-protobuf is supported", contentType)
	}
	err := proto.Unmarshal(rawRequest, request)
	return request, err
}

func readRequest(r *http.Request) ([]byte, error) {
	if r.Header.Get("Content-Encoding") == "gzip" {
		var raw bytes.Buffer
		gunzipper, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, err
		}
		defer gunzipper.Close()
		if _, err = io.Copy(&raw, gunzipper); err != nil {
			return nil, err
		}
		return raw.Bytes(), nil
	}
	return io.ReadAll(r.Body)
}

func runMockCollector(t *testing.T) *mockCollector {
	t.Helper()
	m := &mockCollector{}
	mux := http.NewServeMux()
	mux.Handle(DefaultMetricsPath, http.HandlerFunc(m.serveMetrics))
	m.server = httptest.NewServer(mux)
	return m
}

// MetricsStorage keeps every metric the collector received.
type MetricsStorage struct {
	metrics []*metricpb.Metric
}

func (s *MetricsStorage) AddMetrics(request *collectormetricpb.ExportMetricsServiceRequest) {
	for _, rm := range request.GetResourceMetrics() {
		for _, sm := range rm.GetScopeMetrics() {
			s.metrics = append(s.metrics, sm.GetMetrics()...)
		}
	}
}

func (s *MetricsStorage) GetMetrics() []*metricpb.Metric {
	m := make([]*metricpb.Metric, 0, len(s.metrics))
	return append(m, s.metrics...)
}
