/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		" WARN ":  logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"":        logrus.InfoLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerIsRegisteredOnce(t *testing.T) {
	a := NewLogger("UTILS_TEST")
	b := NewLogger("UTILS_TEST")
	if a != b {
		t.Fatal("expected the same logger for the same name")
	}
	if !SetLoggerLevel("UTILS_TEST", "error") || a.GetLevel() != logrus.ErrorLevel {
		t.Fatal("expected level change on registered logger")
	}
	if SetLoggerLevel("NOT_REGISTERED", "debug") {
		t.Fatal("unknown logger must report false")
	}
}

func TestConsoleFormatterIncludesFields(t *testing.T) {
	f := &Log4jColorFormatter{LoggerName: "REPOSITORY", DisableColors: true}
	entry := logrus.NewEntry(logrus.New()).WithFields(logrus.Fields{"table": "Drivers", "op": "insert"})
	entry.Message = "Insert failed"
	entry.Level = logrus.ErrorLevel
	b, err := f.Format(entry)
	if err != nil {
		t.Fatal(err)
	}
	line := string(b)
	for _, want := range []string{"ERROR", "[REPOSITORY]", "Insert failed", "op=insert table=Drivers"} {
		if !strings.Contains(line, want) {
			t.Errorf("missing %q in %q", want, line)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "DATABASE"}
	entry := logrus.NewEntry(logrus.New()).WithField("error", errors.New("boom"))
	entry.Message = "ping failed"
	entry.Level = logrus.WarnLevel
	b, err := f.Format(entry)
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]interface{}
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatal(err)
	}
	if rec["model"] != "DATABASE" || rec["level"] != "warning" {
		t.Fatalf("unexpected record %v", rec)
	}
	fields := rec["fields"].(map[string]interface{})
	if fields["error"] != "boom" {
		t.Fatalf("error not rendered: %v", fields)
	}
}

func TestSetOutputRedirectsLoggers(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nopWriter{})
	l := NewLogger("UTILS_OUT")
	l.SetLevel(logrus.InfoLevel)
	l.Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected output in buffer, got %q", buf.String())
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
