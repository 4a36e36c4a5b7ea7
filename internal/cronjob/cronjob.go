// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cronjob appends the current one-time code to a log file, either
// once per invocation (system cron) or on a fixed interval.
package cronjob

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opentrusty/seedkeeper/internal/fsutil"
	"github.com/opentrusty/seedkeeper/internal/observability/logger"
	"github.com/opentrusty/seedkeeper/internal/otp"
)

const timestampLayout = "2006-01-02 15:04:05"

// Generator produces the current code.
type Generator interface {
	Generate(ctx context.Context) (otp.Code, error)
}

// Job writes one line per run to Path.
type Job struct {
	gen  Generator
	path string
	now  func() time.Time
}

// Option configures a Job.
type Option func(*Job)

// WithClock sets the clock used for the line timestamp.
func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

// New creates a job appending to path.
func New(gen Generator, path string, opts ...Option) *Job {
	j := &Job{
		gen:  gen,
		path: path,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// FormatLine renders "YYYY-MM-DD HH:MM:SS - 2FA Code: XXXXXX" in UTC.
func FormatLine(t time.Time, code string) string {
	return fmt.Sprintf("%s - 2FA Code: %s\n", t.UTC().Format(timestampLayout), code)
}

// RunOnce generates a code and appends it. Nothing is written on failure.
func (j *Job) RunOnce(ctx context.Context) error {
	code, err := j.gen.Generate(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}
	if err := fsutil.AppendLine(j.path, FormatLine(j.now(), code.Value), 0o600); err != nil {
		return err
	}
	slog.DebugContext(ctx, "code appended", logger.Component("cron"), logger.File(j.path))
	return nil
}

// Run calls RunOnce immediately and then every interval until ctx is done.
// Failed runs are logged and do not stop the loop.
func (j *Job) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("cron interval must be positive, got %s", interval)
	}

	j.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *Job) runLogged(ctx context.Context) {
	if err := j.RunOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "cron run failed", logger.Component("cron"), logger.Error(err))
	}
}
