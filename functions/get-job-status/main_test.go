package main

import "testing"

func TestExtractJobRunID(t *testing.T) {
	cases := map[string]string{
		"/api/v1/jobs/run-7/status":   "run-7",
		"api/v1/jobs/run-7/status/":   "run-7",
		"/api/v1/jobs/run-7":          "",
		"/api/v1/jobs/run-7/files":    "",
		"/api/v1/things/run-7/status": "",
		"":                            "",
	}
	for path, want := range cases {
		if got := extractJobRunID(path); got != want {
			t.Fatalf("extractJobRunID(%q): expected %q, got %q", path, want, got)
		}
	}
}
