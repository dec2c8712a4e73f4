// internal/plan/plan_test.go
package plan

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Steps(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Step
	}{
		{
			name: "Click with integer coordinate",
			raw:  `{"thought":"open the form","action":"click","coordinate":[120,340],"reasoning":"button"}`,
			want: Click{At: Coordinate{120, 340}},
		},
		{
			name: "Click with float coordinate rounds",
			raw:  `{"action":"click","coordinate":[10.6,20.4]}`,
			want: Click{At: Coordinate{11, 20}},
		},
		{
			name: "Click with string coordinate",
			raw:  `{"action":"click","coordinate":"450, 600"}`,
			want: Click{At: Coordinate{450, 600}},
		},
		{
			name: "Click with grid label",
			raw:  `{"action":"click","coordinate":"c4"}`,
			want: Click{Cell: "C4"},
		},
		{
			name: "Type with numeric text",
			raw:  `{"action":"type","coordinate":[450,600],"text":7.2}`,
			want: TypeText{At: Coordinate{450, 600}, Text: "7.2"},
		},
		{
			name: "Type with string text",
			raw:  `{"action":"TYPE","coordinate":[1,2],"text":"12.5"}`,
			want: TypeText{At: Coordinate{1, 2}, Text: "12.5"},
		},
		{
			name: "Scroll default amount",
			raw:  `{"action":"scroll"}`,
			want: Scroll{Amount: DefaultScrollAmount},
		},
		{
			name: "Scroll explicit amount",
			raw:  `{"action":"scroll","amount":300}`,
			want: Scroll{Amount: 300, Explicit: true},
		},
		{
			name: "Wait default duration",
			raw:  `{"action":"wait"}`,
			want: Wait{Duration: DefaultWaitDuration},
		},
		{
			name: "Wait explicit duration",
			raw:  `{"action":"wait","duration":0.5}`,
			want: Wait{Duration: 500 * time.Millisecond, Explicit: true},
		},
		{
			name: "Finish",
			raw:  "```json\n{\"thought\":\"all values entered\",\"action\":\"finish\"}\n```",
			want: Finish{},
		},
		{
			name: "Model reported error",
			raw:  `{"action":"error","error_type":"rate_limit","reasoning":"slow down"}`,
			want: Failure{Kind: ErrRateLimit, Reason: "slow down"},
		},
		{
			name: "Model reported error with kind and reason",
			raw:  `{"action":"error","errorKind":"rateLimit","reason":"quota hit","reasoning":"ignored"}`,
			want: Failure{Kind: ErrRateLimit, Reason: "quota hit"},
		},
		{
			name: "errorKind takes precedence over error_type",
			raw:  `{"action":"error","errorKind":"connection","error_type":"api_error"}`,
			want: Failure{Kind: ErrConnection, Reason: "model reported an error"},
		},
		{
			name: "Unknown action",
			raw:  `{"action":"double_click","coordinate":[1,2]}`,
			want: Unrecognized{Name: "double_click"},
		},
		{
			name: "Findings only",
			raw:  `{"findings":[{"metric":"WBC","value":"7.2","unit":"10^9/L"}],"total_extracted":1}`,
			want: FindingsOnly{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Decode(tt.raw)
			if diff := cmp.Diff(tt.want, p.Step); diff != "" {
				t.Errorf("Decode() step mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{"", "I am not able to see the screen.", `{"action": 12}`, `{"action":"click",`} {
		p := Decode(raw)
		f, ok := p.Failed()
		require.True(t, ok, "raw %q should fail", raw)
		assert.Equal(t, ErrMalformedResponse, f.Kind)
	}
}

func TestDecode_Precedence(t *testing.T) {
	t.Run("Action wins over findings", func(t *testing.T) {
		p := Decode(`{"action":"click","coordinate":[5,5],"findings":[{"metric":"WBC","value":7.2}]}`)
		assert.Equal(t, Click{At: Coordinate{5, 5}}, p.Step)
		require.Len(t, p.Findings, 1)
		assert.Equal(t, "7.2", p.Findings[0].Value)
		assert.NotEmpty(t, p.Warnings)
		assert.False(t, p.Suspect)
	})

	t.Run("Neither action nor findings is suspect", func(t *testing.T) {
		p := Decode(`{"thought":"hmm"}`)
		assert.Equal(t, Unrecognized{}, p.Step)
		assert.True(t, p.Suspect)
		assert.NotEmpty(t, p.Warnings)
	})

	t.Run("Findings without metric are dropped", func(t *testing.T) {
		p := Decode(`{"findings":[{"metric":"","value":"1"},{"metric":"PLT","value":"250"}]}`)
		require.Len(t, p.Findings, 1)
		assert.Equal(t, "PLT", p.Findings[0].Metric)
	})
}

func TestDecode_BadCoordinateShapes(t *testing.T) {
	p := Decode(`{"action":"click","coordinate":{"x":1,"y":2}}`)
	assert.Equal(t, Click{}, p.Step)
	assert.NotEmpty(t, p.Warnings)

	p = Decode(`{"action":"click","coordinate":[1,2,3]}`)
	assert.Equal(t, Click{At: Coordinate{1, 2, 3}}, p.Step, "length is checked by the executor, not the decoder")
}

func TestDecode_CoercedCoordinatesWarn(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Coordinate
		warn string
	}{
		{"Fractional numbers", `{"action":"click","coordinate":[10.6,20.2]}`, Coordinate{11, 20}, "non-integer coordinate"},
		{"String pair", `{"action":"click","coordinate":"450, 600"}`, Coordinate{450, 600}, "string coordinate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Decode(tt.raw)
			assert.Equal(t, Click{At: tt.want}, p.Step)
			require.NotEmpty(t, p.Warnings)
			assert.Contains(t, p.Warnings[len(p.Warnings)-1], tt.warn)
		})
	}

	t.Run("Integer pair is not flagged", func(t *testing.T) {
		p := Decode(`{"action":"click","coordinate":[10,20]}`)
		assert.Empty(t, p.Warnings)
	})
}

func TestParseErrorKind(t *testing.T) {
	assert.Equal(t, ErrRateLimit, ParseErrorKind("rateLimit"))
	assert.Equal(t, ErrRateLimit, ParseErrorKind("rate_limit"))
	assert.Equal(t, ErrConnection, ParseErrorKind("connection"))
	assert.Equal(t, ErrAPIFault, ParseErrorKind("api_error"))
	assert.Equal(t, ErrMalformedResponse, ParseErrorKind("parse_error"))
	assert.Equal(t, ErrUnknown, ParseErrorKind("gremlins"))
	assert.True(t, ErrConnection.Transient())
	assert.False(t, ErrAPIFault.Transient())
}

func TestPlanSummary(t *testing.T) {
	assert.Equal(t, "entered WBC", Plan{Thought: " entered WBC ", Step: Click{}}.Summary())
	assert.Equal(t, "because", Plan{Reasoning: "because", Step: Click{}}.Summary())
	assert.Equal(t, "scroll", Plan{Step: Scroll{}}.Summary())
}

func TestCheckSchema(t *testing.T) {
	assert.Empty(t, CheckSchema(`{"action":"click","coordinate":[1,2]}`))
	assert.Empty(t, CheckSchema(`{"action":"error","errorKind":"rateLimit","reason":"quota hit"}`))
	assert.NotEmpty(t, CheckSchema(`{"action":"click","coordinate":[1]}`))
	assert.NotEmpty(t, CheckSchema(`{"findings":[{"unit":"g/L"}]}`))
}
