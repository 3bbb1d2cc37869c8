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

package util

import (
	"time"
)

// TimerWrapper is a time.Timer that starts stopped and whose channel is nil
// while stopped, so it can sit in a select without firing.
type TimerWrapper struct {
	t        *time.Timer
	stopped  bool
	deadline time.Time
}

func NewTimerWrapper(d time.Duration) *TimerWrapper {
	t := &TimerWrapper{
		t:       time.NewTimer(d),
		stopped: true,
	}
	t.t.Stop()
	return t
}

func (t *TimerWrapper) GetTimeoutCh() <-chan time.Time {
	if t.stopped {
		return nil
	}
	return t.t.C
}

func (t *TimerWrapper) IsStopped() bool {
	return t.stopped
}

// Deadline is the time the timer is armed for. Zero when stopped.
func (t *TimerWrapper) Deadline() time.Time {
	if t.stopped {
		return time.Time{}
	}
	return t.deadline
}

func (t *TimerWrapper) Stop() {
	if t.stopped {
		return
	}
	// drain so a fired-but-unread value does not leak into the next Reset
	if !t.t.Stop() {
		select {
		case <-t.t.C:
		default:
		}
	}
	t.stopped = true
}

func (t *TimerWrapper) Reset(d time.Duration) {
	if !t.stopped {
		t.Stop()
	}
	if d < 0 {
		d = 0
	}
	t.deadline = time.Now().Add(d)
	t.t.Reset(d)
	t.stopped = false
}

// ResetIfEarlier re-arms the timer only when at fires before the current deadline.
func (t *TimerWrapper) ResetIfEarlier(at time.Time) {
	if t.stopped || at.Before(t.deadline) {
		t.Reset(time.Until(at))
	}
}
