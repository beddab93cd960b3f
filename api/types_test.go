package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexInt_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"number", `{"n": 2}`, 2, false},
		{"string", `{"n": "3"}`, 3, false},
		{"float integral", `{"n": 4.0}`, 4, false},
		{"null", `{"n": null}`, 0, false},
		{"empty string", `{"n": ""}`, 0, false},
		{"absent", `{}`, 0, false},
		{"non-numeric", `{"n": "abc"}`, 0, true},
		{"fractional", `{"n": 1.5}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req GenerateRequest
			err := json.Unmarshal([]byte(tt.input), &req)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.N.Int())
		})
	}
}

func TestErrorResponse_DetailsOmittedWhenEmpty(t *testing.T) {
	out, err := json.Marshal(ErrorResponse{Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"boom"}`, string(out))

	out, err = json.Marshal(ErrorResponse{
		Error:   "boom",
		Details: json.RawMessage(`{"error":{"message":"rate limited"}}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"boom","details":{"error":{"message":"rate limited"}}}`, string(out))
}
