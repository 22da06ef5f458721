package proxy

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/sang-cache/sang-cache/internal/upstream"
)

func TestClassify(t *testing.T) {
	rules := DefaultRouteRules()
	cases := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   Strategy
	}{
		{name: "admin root", path: "/admin", want: StrategyExcluded},
		{name: "admin nested", path: "/admin/stats", want: StrategyExcluded},
		{name: "admin beats audio", path: "/admin/upload.mp3", want: StrategyExcluded},
		{name: "admin navigation", path: "/admin/", header: map[string]string{"Sec-Fetch-Mode": "navigate"}, want: StrategyExcluded},
		{name: "admin behind double slash", path: "//admin/stats.json", header: map[string]string{"Sec-Fetch-Mode": "navigate"}, want: StrategyExcluded},
		{name: "admin behind dot segments", path: "/static/../admin/x", want: StrategyExcluded},
		{name: "admin behind encoded slash", path: "/%2Fadmin/stats.json", want: StrategyExcluded},
		{name: "post", method: http.MethodPost, path: "/episodes", want: StrategyExcluded},
		{name: "head", method: http.MethodHead, path: "/audio/intro.mp3", want: StrategyExcluded},
		{name: "audio", path: "/audio/intro.mp3", want: StrategyAudio},
		{name: "audio with query", path: "/audio/intro.mp3?t=30", want: StrategyAudio},
		{name: "audio beats navigation", path: "/intro.mp3", header: map[string]string{"Sec-Fetch-Mode": "navigate"}, want: StrategyAudio},
		{name: "root", path: "/", want: StrategyNavigation},
		{name: "navigate mode", path: "/songs/sang", header: map[string]string{"Sec-Fetch-Mode": "navigate"}, want: StrategyNavigation},
		{name: "document dest", path: "/songs/sang", header: map[string]string{"Sec-Fetch-Dest": "document"}, want: StrategyNavigation},
		{name: "static", path: "/static/site.css", want: StrategyCacheFirst},
		{name: "upper case extension", path: "/audio/INTRO.MP3", want: StrategyCacheFirst},
		{name: "cors fetch", path: "/songs.json", header: map[string]string{"Sec-Fetch-Mode": "cors"}, want: StrategyCacheFirst},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target, err := url.Parse(testOrigin + tc.path)
			if err != nil {
				t.Fatalf("parse url: %v", err)
			}
			req := upstream.NewGetRequest(target)
			if tc.method != "" {
				req.Method = tc.method
			}
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			if got := Classify(req, rules); got != tc.want {
				t.Fatalf("Classify(%s) = %s, want %s", tc.path, got, tc.want)
			}
		})
	}
}

func TestClassifyCustomRules(t *testing.T) {
	rules := RouteRules{AdminPrefix: "/manage", AudioExtension: ".ogg"}
	target, _ := url.Parse(testOrigin + "/admin/stats")
	if got := Classify(upstream.NewGetRequest(target), rules); got != StrategyCacheFirst {
		t.Fatalf("custom admin prefix should replace the default, got %s", got)
	}
	target, _ = url.Parse(testOrigin + "/a.ogg")
	if got := Classify(upstream.NewGetRequest(target), rules); got != StrategyAudio {
		t.Fatalf("custom audio extension should classify as audio, got %s", got)
	}
}

func TestCacheKeyIgnoresQueryForAudioOnly(t *testing.T) {
	rules := DefaultRouteRules()
	audio, _ := url.Parse(testOrigin + "/audio/intro.mp3?v=2")
	if got := rules.CacheKey(audio); got != testOrigin+"/audio/intro.mp3" {
		t.Fatalf("audio key should drop the query, got %s", got)
	}
	page, _ := url.Parse(testOrigin + "/songs?page=2")
	if got := rules.CacheKey(page); got != testOrigin+"/songs?page=2" {
		t.Fatalf("non-audio key should keep the query, got %s", got)
	}
}
