package fleetview

import (
	"net/url"
	"testing"
)

func TestDemoEndpoints(t *testing.T) {
	ep := DemoEndpoints("https://demos.example.com/", "/fractal/")

	if ep.Start != "https://demos.example.com/fractal/instance" {
		t.Errorf("Start = %q", ep.Start)
	}
	if ep.List != ep.Start {
		t.Errorf("List = %q, want same as Start", ep.List)
	}
	if ep.Stop != "https://demos.example.com/fractal/cleanup" {
		t.Errorf("Stop = %q", ep.Stop)
	}
	if err := ep.validate(); err != nil {
		t.Errorf("validate() error = %v", err)
	}
}

func TestMergeParams(t *testing.T) {
	common := url.Values{"project": {"p1"}, "zone": {"z1"}}
	caller := url.Values{"project": {"p2"}, "tag": {"worker"}}

	got := mergeParams(common, caller)

	if got.Get("project") != "p2" {
		t.Errorf("project = %q, want caller value", got.Get("project"))
	}
	if got.Get("zone") != "z1" || got.Get("tag") != "worker" {
		t.Errorf("merged = %v", got)
	}

	got.Set("zone", "changed")
	if common.Get("zone") != "z1" {
		t.Error("mergeParams aliased the common values")
	}

	if len(mergeParams(nil, nil)) != 0 {
		t.Error("mergeParams(nil, nil) not empty")
	}
}

func TestWithQuery(t *testing.T) {
	got, err := withQuery("http://fleet.local/fractal/instance?a=1", url.Values{"b": {"2"}})
	if err != nil {
		t.Fatalf("withQuery() error = %v", err)
	}
	parsed, _ := url.Parse(got)
	if parsed.Query().Get("a") != "1" || parsed.Query().Get("b") != "2" {
		t.Errorf("withQuery() = %q", got)
	}

	unchanged, _ := withQuery("http://fleet.local/x", nil)
	if unchanged != "http://fleet.local/x" {
		t.Errorf("withQuery(nil) = %q", unchanged)
	}
}
