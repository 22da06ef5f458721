package logging

import "testing"

func TestRequestFieldsOmitsEmptyRequestID(t *testing.T) {
	fields := RequestFields("audio", "/audio/a.mp3", "", true)
	if _, ok := fields["request_id"]; ok {
		t.Fatalf("空 request id 不应写入字段")
	}
	if fields["strategy"] != "audio" || fields["cache_hit"] != true {
		t.Fatalf("字段内容错误: %v", fields)
	}

	fields = RequestFields("navigation", "/", "req-1", false)
	if fields["request_id"] != "req-1" {
		t.Fatalf("request id 缺失: %v", fields)
	}
}
