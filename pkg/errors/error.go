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
Package errors defines the error taxonomy of the client.

	FramingError        malformed or truncated frame; fatal to that frame only
	ResolveError        name resolution failed (Unreachable or Malformed)
	ConfigurationError  invalid option value
	ErrSendTimeout      client side deadline exceeded (retryable)
	IOError             transport failure (retryable)
	BrokerError         broker answered with a non-success response code

Errors that can be retried implement IRetryable.
*/
package errors

import (
	"errors"
	"fmt"
)

type IRetryable interface {
	Retryable() bool
}

type Error struct {
	What string
}

func (e *Error) Retryable() bool { return false }

func (e *Error) Error() string {
	return "error: " + e.What
}

type RetryableError struct {
	What string
}

func (e *RetryableError) Retryable() bool { return true }

func (e *RetryableError) Error() string {
	return "error: " + e.What
}

var (
	ErrSendTimeout     = &RetryableError{"send timeout"}
	ErrNoRoute         = &RetryableError{"no route info for topic"}
	ErrClosed          = &Error{"client closed"}
	ErrEmptyTopic      = &Error{"empty topic"}
	ErrEmptyBody       = &Error{"empty message body"}
	ErrMessageTooLarge = &Error{"message body too large"}
	ErrDuplicateGroup  = &Error{"group already registered"}
	ErrNoNameServer    = &RetryableError{"no name server address"}
)

type FramingError struct {
	What string
	Err  error
}

func NewFramingError(what string, err error) *FramingError {
	return &FramingError{What: what, Err: err}
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("framing error: %s: %s", e.What, e.Err)
	}
	return "framing error: " + e.What
}

func (e *FramingError) Unwrap() error { return e.Err }

func (e *FramingError) Retryable() bool { return false }

type ResolveErrorKind int

const (
	ResolveUnreachable ResolveErrorKind = iota + 1
	ResolveMalformed
)

func (k ResolveErrorKind) String() string {
	switch k {
	case ResolveUnreachable:
		return "unreachable"
	case ResolveMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

type ResolveError struct {
	Kind     ResolveErrorKind
	Resolver string
	Err      error
}

func NewUnreachableError(resolver string, err error) *ResolveError {
	return &ResolveError{Kind: ResolveUnreachable, Resolver: resolver, Err: err}
}

func NewMalformedError(resolver string, err error) *ResolveError {
	return &ResolveError{Kind: ResolveMalformed, Resolver: resolver, Err: err}
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve error (%s) from %s: %v", e.Kind, e.Resolver, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// A failed resolve is surfaced to the caller, who owns the retry policy.
func (e *ResolveError) Retryable() bool { return e.Kind == ResolveUnreachable }

type ConfigurationError struct {
	Field string
	What  string
}

func NewConfigurationError(field string, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, What: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.What)
}

func (e *ConfigurationError) Retryable() bool { return false }

type IOError struct {
	Err error
}

func (e *IOError) Retryable() bool { return true }

func (e *IOError) Error() string {
	return "IOError: " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

type BrokerError struct {
	Code   int
	Remark string
}

func NewBrokerError(code int, remark string) *BrokerError {
	return &BrokerError{Code: code, Remark: remark}
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker error: code=%d remark=%s", e.Code, e.Remark)
}

// Response codes kept in sync with pkg/proto. Duplicated here so that the
// errors package stays a leaf.
const (
	codeSystemError         = 1
	codeSystemBusy          = 2
	codeServiceNotAvailable = 14
	codeTopicNotExist       = 17
)

func (e *BrokerError) Retryable() bool {
	switch e.Code {
	case codeSystemError, codeSystemBusy, codeServiceNotAvailable, codeTopicNotExist:
		return true
	}
	return false
}

func IsRetryable(err error) bool {
	var r IRetryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

func IsSendTimeout(err error) bool {
	return errors.Is(err, ErrSendTimeout)
}
