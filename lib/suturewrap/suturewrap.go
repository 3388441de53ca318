// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package suturewrap adapts a plain serve function into a thejerf/suture/v4
// Service, and wraps a Supervisor so a fatal error from any supervised
// service can be observed by the caller instead of only causing silent
// restarts.
package suturewrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/thejerf/suture/v4"
)

// FatalErr marks an error that should stop the whole supervisor tree
// rather than trigger suture's usual restart-with-backoff.
type FatalErr struct {
	Err    error
	Status ExitStatus
}

func (e *FatalErr) Error() string {
	return e.Err.Error()
}

func (e *FatalErr) Unwrap() error {
	return e.Err
}

type ExitStatus int

const (
	ExitSuccess ExitStatus = 0
	ExitError   ExitStatus = 1
)

func (s ExitStatus) AsInt() int {
	return int(s)
}

type ServiceToken suture.ServiceToken

type supService struct {
	suture.Service
	fatalChan chan<- *FatalErr
}

func (s *supService) Serve(ctx context.Context) error {
	err := s.Service.Serve(ctx)
	ferr := &FatalErr{}
	if errors.As(err, &ferr) {
		s.fatalChan <- ferr
	}
	return err
}

// Supervisor wraps a suture.Supervisor, plumbing any FatalErr raised by a
// supervised service out of Serve instead of letting suture silently
// restart it forever.
type Supervisor struct {
	sup       *suture.Supervisor
	fatalChan chan *FatalErr
	stopOnce  sync.Once
}

func New(name string) *Supervisor {
	s := &Supervisor{fatalChan: make(chan *FatalErr, 1)}
	s.sup = suture.New(name, suture.Spec{PassThroughPanics: true})
	return s
}

// Serve runs the supervisor tree until ctx is canceled (or its deadline
// passes) or a supervised service reports a FatalErr, whichever comes
// first. The end of ctx is a clean stop and returns nil.
func (s *Supervisor) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	var fatalErr error
	go func() {
		select {
		case err := <-s.fatalChan:
			fatalErr = err
			cancel()
		case <-done:
		}
	}()

	err := s.sup.Serve(ctx)
	close(done)
	if fatalErr != nil {
		return fatalErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Supervisor) Add(service suture.Service) ServiceToken {
	return ServiceToken(s.sup.Add(&supService{Service: service, fatalChan: s.fatalChan}))
}

func (s *Supervisor) Remove(token ServiceToken) error {
	return s.sup.Remove(suture.ServiceToken(token))
}

func (s *Supervisor) String() string {
	return fmt.Sprintf("Supervisor(%p)", s.sup)
}

// AsService adapts a plain ctx-aware function into a suture.Service.
func AsService(fn func(ctx context.Context) error) suture.Service {
	return serviceFunc(fn)
}

type serviceFunc func(ctx context.Context) error

func (f serviceFunc) Serve(ctx context.Context) error {
	return f(ctx)
}
