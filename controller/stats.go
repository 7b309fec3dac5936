// Copyright 2026 The cmlids Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package controller

import (
	"sync"
	"time"
)

// Stats are the running totals of a controller.
type Stats struct {
	mtx       sync.Mutex
	requests  int
	responses int
	drops     map[string]int
	latency   map[string]time.Duration
}

func (s *Stats) addRequest() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.requests++
}

func (s *Stats) addResponse() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.responses++
}

func (s *Stats) addDrop(reason string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.drops == nil {
		s.drops = make(map[string]int)
	}
	s.drops[reason]++
}

func (s *Stats) addLatency(model string, d time.Duration) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.latency == nil {
		s.latency = make(map[string]time.Duration)
	}
	s.latency[model] += d
}

// Requests returns the number of classification requests received.
func (s *Stats) Requests() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.requests
}

// Responses returns the number of responses sent.
func (s *Stats) Responses() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.responses
}

// Drops returns the number of requests dropped for reason.
func (s *Stats) Drops(reason string) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.drops[reason]
}

// TotalLatency returns the time spent in inference of the model.
func (s *Stats) TotalLatency(model string) time.Duration {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.latency[model]
}

// AverageLatency returns the inference time of the model per received
// request, or zero before the first request.
func (s *Stats) AverageLatency(model string) time.Duration {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.requests == 0 {
		return 0
	}
	return s.latency[model] / time.Duration(s.requests)
}
