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
Package stats keeps client side latency histograms per request type.
*/
package stats

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

type RequestType uint8

const (
	RequestTypeSend RequestType = iota
	RequestTypeSendOneway
	RequestTypeSendAsync
	RequestTypePull
	kNumRequestTypes
)

var requestTypeNames = [kNumRequestTypes]string{"Send", "SendOneway", "SendAsync", "Pull"}

func (t RequestType) String() string {
	if t < kNumRequestTypes {
		return requestTypeNames[t]
	}
	return fmt.Sprintf("RequestType(%d)", uint8(t))
}

type (
	RequestStat struct {
		mtx       sync.Mutex
		hist      *hdrhistogram.Histogram
		total     time.Duration
		numErrors int64
	}
	Statistics struct {
		all      RequestStat
		requests [kNumRequestTypes]RequestStat
		tmStart  time.Time
	}
	StatsData struct {
		Throughput   float32
		AvgLatency   time.Duration
		MinLatency   time.Duration
		MaxLatency   time.Duration
		P50Latency   time.Duration
		P95Latency   time.Duration
		P99Latency   time.Duration
		P9999Latency time.Duration
		NumRequests  int64
		NumErrors    int64
	}
)

func (s *RequestStat) init() {
	if s.hist == nil {
		s.hist = hdrhistogram.New(1, int64(3600*time.Second), 3)
	}
}

func (s *RequestStat) Put(tm time.Duration, err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.init()
	// values beyond the highest trackable value are dropped by the histogram
	_ = s.hist.RecordValue(int64(tm))
	s.total += tm
	if err != nil {
		s.numErrors++
	}
}

func (s *RequestStat) GetStats() (stat StatsData) {
	s.mtx.Lock()
	s.init()
	stat.NumRequests = s.hist.TotalCount()
	stat.NumErrors = s.numErrors
	stat.MinLatency = time.Duration(s.hist.Min())
	stat.MaxLatency = time.Duration(s.hist.Max())
	stat.P50Latency = time.Duration(s.hist.ValueAtQuantile(50.))
	stat.P95Latency = time.Duration(s.hist.ValueAtQuantile(95.))
	stat.P99Latency = time.Duration(s.hist.ValueAtQuantile(99.))
	stat.P9999Latency = time.Duration(s.hist.ValueAtQuantile(99.99))
	total := s.total
	s.mtx.Unlock()

	if stat.NumRequests != 0 {
		v := float32(total) / float32(stat.NumRequests)
		stat.AvgLatency = time.Duration(v)
		if v > 0 {
			stat.Throughput = 1.0e9 / v
		}
	}
	return
}

func (s *RequestStat) GetTotalCount() (num int64) {
	s.mtx.Lock()
	s.init()
	num = s.hist.TotalCount()
	s.mtx.Unlock()
	return
}

func (s *RequestStat) Reset() {
	s.mtx.Lock()
	s.init()
	s.hist.Reset()
	s.numErrors = 0
	s.total = 0
	s.mtx.Unlock()
}

func NewStatistics() *Statistics {
	return &Statistics{tmStart: time.Now()}
}

func (s *Statistics) Reset() {
	s.all.Reset()
	for i := 0; i < int(kNumRequestTypes); i++ {
		s.requests[i].Reset()
	}
	s.tmStart = time.Now()
}

func (s *Statistics) Put(typ RequestType, tm time.Duration, err error) {
	if typ >= kNumRequestTypes {
		return
	}
	s.all.Put(tm, err)
	s.requests[typ].Put(tm, err)
}

func (s *Statistics) GetNumRequests() int64 {
	return s.all.GetTotalCount()
}

func (s *Statistics) Get(typ RequestType) StatsData {
	if typ >= kNumRequestTypes {
		return StatsData{}
	}
	return s.requests[typ].GetStats()
}

func (s *Statistics) All() StatsData {
	return s.all.GetStats()
}

func (s *Statistics) Since() time.Duration {
	return time.Since(s.tmStart)
}

func (s *Statistics) PrettyPrint(w io.Writer) {
	msfunc := func(d time.Duration) time.Duration {
		return d.Round(time.Microsecond)
	}

	fmt.Fprintln(w,
		`
 request/s  |                             request latency                                              |  number of |            |              | number of
  average   | average    | min        | max        |        50% |      95%   |      99%   |     99.99% |  requests  | percentage | request type |  errors
------------+------------+------------+------------+------------+------------+------------+------------+------------+------------+--------------+-------------`)
	wstatFunc := func(stat *StatsData, percentage float32, reqType string) {
		fmt.Fprintf(w, "%12.2f %12s %12s %12s %12s %12s %12s %12s %12d %12.2f %12s %12d\n",
			stat.Throughput, msfunc(stat.AvgLatency), msfunc(stat.MinLatency), msfunc(stat.MaxLatency), msfunc(stat.P50Latency), msfunc(stat.P95Latency),
			msfunc(stat.P99Latency), msfunc(stat.P9999Latency),
			stat.NumRequests,
			percentage, reqType, stat.NumErrors)
	}
	stat4all := s.all.GetStats()

	for i := 0; i < int(kNumRequestTypes); i++ {
		stat := s.requests[i].GetStats()
		if stat.NumRequests != 0 {
			wstatFunc(&stat, 100.0*float32(stat.NumRequests)/float32(stat4all.NumRequests), RequestType(i).String())
		}
	}
	fmt.Fprintln(w,
		"------------+------------+------------+------------+------------+------------+------------+------------+------------+------------+--------------+-------------")
	wstatFunc(&stat4all, 100.0, "All")
}
