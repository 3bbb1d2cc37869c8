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

package message

import (
	uuid "github.com/satori/go.uuid"

	"github.com/kaixinbaba/rocketmq-go/pkg/util"
)

// CreateUniqID returns a time based id rendered as 32 upper case hex digits.
func CreateUniqID() string {
	u := uuid.NewV1()
	return util.ToHexString(u.Bytes())
}

// SetUniqID assigns a unique key unless the message already carries one.
func SetUniqID(m *Message) string {
	if id := m.GetUniqueKey(); id != "" {
		return id
	}
	id := CreateUniqID()
	m.WithProperty(PropertyUniqueKey, id)
	return id
}
