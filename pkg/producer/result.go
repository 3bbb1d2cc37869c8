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

package producer

import (
	"fmt"

	"github.com/kaixinbaba/rocketmq-go/pkg/message"
)

type SendStatus int

const (
	SendOK SendStatus = iota
	SendFlushDiskTimeout
	SendFlushSlaveTimeout
	SendSlaveNotAvailable
)

var sendStatusNames = []string{"SEND_OK", "FLUSH_DISK_TIMEOUT", "FLUSH_SLAVE_TIMEOUT", "SLAVE_NOT_AVAILABLE"}

func (s SendStatus) String() string {
	if s >= 0 && int(s) < len(sendStatusNames) {
		return sendStatusNames[s]
	}
	return fmt.Sprintf("SendStatus(%d)", int(s))
}

type SendResult struct {
	Status       SendStatus
	MsgID        string
	OffsetMsgID  string
	MessageQueue *message.MessageQueue
	QueueOffset  int64
	RegionID     string
	TraceOn      bool
}

func (r *SendResult) String() string {
	return fmt.Sprintf("SendResult [sendStatus=%s, msgId=%s, offsetMsgId=%s, queueOffset=%d, messageQueue=%s]",
		r.Status, r.MsgID, r.OffsetMsgID, r.QueueOffset, r.MessageQueue)
}

// SendCallback receives the outcome of SendAsync. Exactly one of result and
// err is nil.
type SendCallback func(result *SendResult, err error)
