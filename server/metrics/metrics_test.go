package metrics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestHandlerServesSnapshot(t *testing.T) {
	before := FramesRelayed.Value()
	FramesRelayed.Add(3)
	RoomsOpen.Inc()
	defer RoomsOpen.Dec()

	rec := httptest.NewRecorder()
	Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	var got map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["frames_relayed_total"] != before+3 {
		t.Fatalf("frames_relayed_total = %d, want %d", got["frames_relayed_total"], before+3)
	}
	if got["rooms_open"] < 1 {
		t.Fatalf("rooms_open = %d", got["rooms_open"])
	}
}
