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

package proto

import (
	"fmt"
)

type (
	RequestCode  int
	ResponseCode int
)

const (
	RequestCodeSendMessage         RequestCode = 10
	RequestCodePullMessage         RequestCode = 11
	RequestCodeGetMaxOffset        RequestCode = 30
	RequestCodeGetMinOffset        RequestCode = 31
	RequestCodeHeartBeat           RequestCode = 34
	RequestCodeUnregisterClient    RequestCode = 35
	RequestCodeGetRouteInfoByTopic RequestCode = 105
)

const (
	ResponseCodeSuccess                 ResponseCode = 0
	ResponseCodeSystemError             ResponseCode = 1
	ResponseCodeSystemBusy              ResponseCode = 2
	ResponseCodeRequestCodeNotSupported ResponseCode = 3
	ResponseCodeFlushDiskTimeout        ResponseCode = 10
	ResponseCodeSlaveNotAvailable       ResponseCode = 11
	ResponseCodeFlushSlaveTimeout       ResponseCode = 12
	ResponseCodeMessageIllegal          ResponseCode = 13
	ResponseCodeServiceNotAvailable     ResponseCode = 14
	ResponseCodeNoPermission            ResponseCode = 16
	ResponseCodeTopicNotExist           ResponseCode = 17
	ResponseCodePullNotFound            ResponseCode = 19
	ResponseCodePullRetryImmediately    ResponseCode = 20
	ResponseCodePullOffsetMoved         ResponseCode = 21
)

var requestCodeNames = map[RequestCode]string{
	RequestCodeSendMessage:         "SendMessage",
	RequestCodePullMessage:         "PullMessage",
	RequestCodeGetMaxOffset:        "GetMaxOffset",
	RequestCodeGetMinOffset:        "GetMinOffset",
	RequestCodeHeartBeat:           "HeartBeat",
	RequestCodeUnregisterClient:    "UnregisterClient",
	RequestCodeGetRouteInfoByTopic: "GetRouteInfoByTopic",
}

var responseCodeNames = map[ResponseCode]string{
	ResponseCodeSuccess:                 "Success",
	ResponseCodeSystemError:             "SystemError",
	ResponseCodeSystemBusy:              "SystemBusy",
	ResponseCodeRequestCodeNotSupported: "RequestCodeNotSupported",
	ResponseCodeFlushDiskTimeout:        "FlushDiskTimeout",
	ResponseCodeSlaveNotAvailable:       "SlaveNotAvailable",
	ResponseCodeFlushSlaveTimeout:       "FlushSlaveTimeout",
	ResponseCodeMessageIllegal:          "MessageIllegal",
	ResponseCodeServiceNotAvailable:     "ServiceNotAvailable",
	ResponseCodeNoPermission:            "NoPermission",
	ResponseCodeTopicNotExist:           "TopicNotExist",
	ResponseCodePullNotFound:            "PullNotFound",
	ResponseCodePullRetryImmediately:    "PullRetryImmediately",
	ResponseCodePullOffsetMoved:         "PullOffsetMoved",
}

func (c RequestCode) String() string {
	if s, ok := requestCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("RequestCode(%d)", int(c))
}

func (c ResponseCode) String() string {
	if s, ok := responseCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ResponseCode(%d)", int(c))
}
