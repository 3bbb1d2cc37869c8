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

package sec

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/golang/glog"
)

// LoadTLSConfig builds a client TLS config. The certificate and key are
// optional and used for client authentication. Without a CA file the system
// roots verify the broker.
func LoadTLSConfig(cfg *Config) (*tls.Config, error) {
	conf := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.CertPemFilePath != "" || cfg.KeyPemFilePath != "" {
		certPEMBlock, keyPEMBlock, err := getCertAndKeyPemBlock(cfg)
		if err != nil {
			return nil, err
		}
		cert, err := tls.X509KeyPair(certPEMBlock, keyPEMBlock)
		if err != nil {
			return nil, fmt.Errorf("load key pair: %w", err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}
	if cfg.CAFilePath != "" {
		caPEMBlock, err := os.ReadFile(cfg.CAFilePath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEMBlock) {
			return nil, fmt.Errorf("no certificate found in %s", cfg.CAFilePath)
		}
		conf.RootCAs = pool
	}
	if cfg.InsecureSkipVerify {
		glog.Warningln("broker certificate verification is disabled")
	}
	return conf, nil
}

func getCertAndKeyPemBlock(cfg *Config) (certPEMBlock []byte, keyPEMBlock []byte, err error) {
	if cfg.CertPemFilePath == "" || cfg.KeyPemFilePath == "" {
		err = fmt.Errorf("certificate and key must be configured together")
		return
	}
	if certPEMBlock, err = os.ReadFile(cfg.CertPemFilePath); err != nil {
		return
	}
	keyPEMBlock, err = os.ReadFile(cfg.KeyPemFilePath)
	return
}
