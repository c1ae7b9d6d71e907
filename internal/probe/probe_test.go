package probe

import "testing"

func TestParseProbeOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		input        string
		wantWidth    int
		wantHeight   int
		wantDuration *float64
		wantErr      bool
	}{
		{
			name:         "Full output",
			input:        `{"streams":[{"width":1920,"height":1080}],"format":{"duration":"12.345"}}`,
			wantWidth:    1920,
			wantHeight:   1080,
			wantDuration: floatPtr(12.345),
		},
		{
			name:      "No duration field",
			input:     `{"streams":[{"width":640,"height":480}],"format":{}}`,
			wantWidth: 640, wantHeight: 480,
		},
		{
			name:  "No streams",
			input: `{"streams":[],"format":{"duration":"3.0"}}`,
			wantDuration: floatPtr(3.0),
		},
		{
			name:  "Unparseable duration yields nil not zero",
			input: `{"streams":[],"format":{"duration":"N/A"}}`,
		},
		{
			name:  "Empty object",
			input: `{}`,
		},
		{
			name:    "Garbage",
			input:   `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := parseProbeOutput([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if meta.Width != tt.wantWidth || meta.Height != tt.wantHeight {
				t.Errorf("dimensions = %dx%d, want %dx%d", meta.Width, meta.Height, tt.wantWidth, tt.wantHeight)
			}
			if tt.wantDuration == nil {
				if meta.Duration != nil {
					t.Errorf("duration = %v, want nil", *meta.Duration)
				}
			} else if meta.Duration == nil || *meta.Duration != *tt.wantDuration {
				t.Errorf("duration = %v, want %v", meta.Duration, *tt.wantDuration)
			}
		})
	}
}

func floatPtr(f float64) *float64 { return &f }
