package registry

import (
	"encoding/json"
	"testing"

	"github.com/safetradehq/safetrade-backend/pkg/enums"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventTradeConfirmed, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"status":"delivered"}`)
	output, err := reg.Decode(enums.EventTradeConfirmed, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["status"] != "delivered" {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventTradeCompleted, 1, input); err == nil {
		t.Fatalf("expected missing decoder error")
	}
}
