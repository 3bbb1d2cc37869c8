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

package config

import (
	"github.com/golang/glog"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
)

type HistBuckets struct {
	Send    []float64
	Pull    []float64
	Resolve []float64
	Connect []float64
}

type Config struct {
	Host             string
	Port             uint32
	UrlPath          string
	Environment      string
	ServiceName      string
	Enabled          bool
	Resolution       uint32
	UseTls           bool
	HistogramBuckets HistBuckets
}

func (c *Config) Validate() error {
	if len(c.ServiceName) <= 0 {
		return errors.NewConfigurationError("ServiceName", "otel service name is required")
	}
	c.setDefaultIfNotDefined()
	return nil
}

func (c *Config) setDefaultIfNotDefined() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 4318
	}
	if c.Resolution == 0 {
		c.Resolution = 60
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.UrlPath == "" {
		c.UrlPath = "/v1/metrics"
	}
	if c.HistogramBuckets.Send == nil {
		c.HistogramBuckets.Send = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 3000}
	}
	if c.HistogramBuckets.Pull == nil {
		c.HistogramBuckets.Pull = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 3000}
	}
	if c.HistogramBuckets.Resolve == nil {
		c.HistogramBuckets.Resolve = []float64{5, 10, 50, 100, 500, 1000, 3000}
	}
	if c.HistogramBuckets.Connect == nil {
		c.HistogramBuckets.Connect = []float64{100, 200, 400, 800, 1200, 2400, 3600, 7200, 10800, 21600, 43200, 86400}
	}
}

func (c *Config) Dump() {
	glog.Infof("Host : %s", c.Host)
	glog.Infof("Port: %d", c.Port)
	glog.Infof("Environment: %s", c.Environment)
	glog.Infof("ServiceName: %s", c.ServiceName)
	glog.Infof("Resolution: %d", c.Resolution)
	glog.Infof("UseTls: %t", c.UseTls)
	glog.Infof("UrlPath: %s", c.UrlPath)
	glog.Info("Send Bucket: ", c.HistogramBuckets.Send)
	glog.Info("Pull Bucket: ", c.HistogramBuckets.Pull)
	glog.Info("Resolve Bucket: ", c.HistogramBuckets.Resolve)
	glog.Info("Connect Bucket: ", c.HistogramBuckets.Connect)
}
