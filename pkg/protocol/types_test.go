package protocol

import (
	"encoding/json"
	"testing"
)

func TestGuestRequestJSON(t *testing.T) {
	req := GuestRequest{
		Method:  "POST",
		Path:    "/orders",
		Headers: map[string]string{"content-type": "application/json"},
		Body:    []byte(`{"id":1}`),
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded GuestRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.Method != "POST" || decoded.Path != "/orders" {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
	if string(decoded.Body) != `{"id":1}` {
		t.Errorf("body mismatch: %s", decoded.Body)
	}
}

func TestGuestResponseOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(GuestResponse{Status: 204})
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != `{"status":204}` {
		t.Errorf("expected minimal encoding, got %s", data)
	}
}
