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

package cli

import (
	"fmt"

	"github.com/kaixinbaba/rocketmq-go/pkg/errors"
)

var (
	ErrResponseTimeout = errors.ErrSendTimeout
	ErrReaderClosed    = &errors.IOError{Err: fmt.Errorf("response reader closed")}
	ErrProcessorClosed = errors.ErrClosed
)

type DuplicateOpaqueError struct {
	Opaque int32
}

func (e *DuplicateOpaqueError) Error() string {
	return fmt.Sprintf("opaque %d already in flight on this connection", e.Opaque)
}

func (e *DuplicateOpaqueError) Retryable() bool { return true }

func newIOError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(errors.IRetryable); ok {
		return err
	}
	return &errors.IOError{Err: err}
}
