package core

import (
	"slices"
	"testing"
)

func TestBuildLaunchArgs(t *testing.T) {
	t.Parallel()

	base := []string{"/opt/chrome/chrome", "--user-data-dir=/p/1"}
	extra := []string{"--lang=de"}

	tests := map[string]struct {
		goos           string
		headless       bool
		hostHasDisplay bool
		want           []string
	}{
		"linux headless with host display": {
			goos: "linux", headless: true, hostHasDisplay: true,
			want: []string{"/opt/chrome/chrome", "--user-data-dir=/p/1", "--headless=new", "--lang=de"},
		},
		"linux headless without host display": {
			goos: "linux", headless: true, hostHasDisplay: false,
			want: []string{"/opt/chrome/chrome", "--user-data-dir=/p/1", "--headless=new", "--enable-unsafe-swiftshader", "--lang=de"},
		},
		"linux headed": {
			goos: "linux", headless: false, hostHasDisplay: true,
			want: []string{"/opt/chrome/chrome", "--user-data-dir=/p/1", "--enable-unsafe-swiftshader", "--lang=de"},
		},
		"windows headless": {
			goos: "windows", headless: true, hostHasDisplay: false,
			want: []string{"/opt/chrome/chrome", "--user-data-dir=/p/1", "--headless=new", "--enable-unsafe-swiftshader", "--lang=de"},
		},
		"windows headed": {
			goos: "windows", headless: false, hostHasDisplay: false,
			want: []string{"/opt/chrome/chrome", "--user-data-dir=/p/1", "--lang=de"},
		},
		"darwin headed": {
			goos: "darwin", headless: false, hostHasDisplay: false,
			want: []string{"/opt/chrome/chrome", "--user-data-dir=/p/1", "--enable-unsafe-swiftshader", "--lang=de"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			spec := LaunchSpec{Args: slices.Clone(base), Headless: tc.headless, ExtraArgs: slices.Clone(extra)}
			got := BuildLaunchArgs(spec, tc.goos, tc.hostHasDisplay)
			if !slices.Equal(got, tc.want) {
				t.Errorf("BuildLaunchArgs() = %v, want %v", got, tc.want)
			}
			if !slices.Equal(spec.Args, base) || !slices.Equal(spec.ExtraArgs, extra) {
				t.Error("BuildLaunchArgs modified the spec")
			}
		})
	}
}
