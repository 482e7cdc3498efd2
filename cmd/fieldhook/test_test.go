package main

import (
	"reflect"
	"testing"
)

func TestParseTestArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantPackages []string
		wantFlags    []string
		wantVerbose  bool
	}{
		{
			name:         "no args - default to current dir",
			args:         []string{},
			wantPackages: []string{"."},
			wantFlags:    []string{},
		},
		{
			name:         "single package",
			args:         []string{"./..."},
			wantPackages: []string{"./..."},
			wantFlags:    []string{},
		},
		{
			name:         "verbose flag",
			args:         []string{"-v", "./..."},
			wantPackages: []string{"./..."},
			wantFlags:    []string{"-v"},
			wantVerbose:  true,
		},
		{
			name:         "run flag with value",
			args:         []string{"-run", "TestFoo", "./pkg/..."},
			wantPackages: []string{"./pkg/..."},
			wantFlags:    []string{"-run", "TestFoo"},
		},
		{
			name:         "run flag with equals",
			args:         []string{"-run=TestBar", "./..."},
			wantPackages: []string{"./..."},
			wantFlags:    []string{"-run=TestBar"},
		},
		{
			name:         "multiple flags",
			args:         []string{"-v", "-cover", "-timeout=30s", "./internal/..."},
			wantPackages: []string{"./internal/..."},
			wantFlags:    []string{"-v", "-cover", "-timeout=30s"},
			wantVerbose:  true,
		},
		{
			name:         "coverage profile",
			args:         []string{"-coverprofile", "coverage.out", "./..."},
			wantPackages: []string{"./..."},
			wantFlags:    []string{"-coverprofile", "coverage.out"},
		},
		{
			name:         "benchmark flags",
			args:         []string{"-bench", ".", "-benchmem", "./..."},
			wantPackages: []string{"./..."},
			wantFlags:    []string{"-bench", ".", "-benchmem"},
		},
		{
			name:         "multiple packages",
			args:         []string{"./a", "./b/..."},
			wantPackages: []string{"./a", "./b/..."},
			wantFlags:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := parseTestArgs(tt.args)
			if err != nil {
				t.Fatalf("parseTestArgs() error: %v", err)
			}

			if !reflect.DeepEqual(config.packages, tt.wantPackages) {
				t.Errorf("packages = %v, want %v", config.packages, tt.wantPackages)
			}
			if !reflect.DeepEqual(config.testFlags, tt.wantFlags) {
				t.Errorf("flags = %v, want %v", config.testFlags, tt.wantFlags)
			}
			if config.verbose != tt.wantVerbose {
				t.Errorf("verbose = %v, want %v", config.verbose, tt.wantVerbose)
			}
		})
	}
}

func TestTestFlagNeedsValue(t *testing.T) {
	tests := []struct {
		flag string
		want bool
	}{
		{"-run", true},
		{"-skip", true},
		{"-bench", true},
		{"-count", true},
		{"-timeout", true},
		{"-coverprofile", true},
		{"-tags", true},
		{"-run=TestFoo", false},
		{"-timeout=30s", false},
		{"-v", false},
		{"-cover", false},
		{"-benchmem", false},
		{"-short", false},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			if got := testFlagNeedsValue(tt.flag); got != tt.want {
				t.Errorf("testFlagNeedsValue(%q) = %v, want %v", tt.flag, got, tt.want)
			}
		})
	}
}
