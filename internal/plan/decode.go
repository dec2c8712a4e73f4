// internal/plan/decode.go
package plan

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/medipilot/internal/frame"
	"github.com/xkilldash9x/medipilot/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// wirePlan mirrors the model's JSON. Fields whose type models get wrong are
// kept raw and interpreted leniently.
type wirePlan struct {
	Thought     string              `json:"thought"`
	Action      string              `json:"action"`
	Coordinate  jsoniter.RawMessage `json:"coordinate"`
	Text        jsoniter.RawMessage `json:"text"`
	Reasoning   string              `json:"reasoning"`
	Amount      *float64            `json:"amount"`
	Duration    *float64            `json:"duration"`
	ErrorKind   string              `json:"errorKind"`
	ErrorType   string              `json:"error_type"`
	Reason      string              `json:"reason"`
	Findings    []wireFinding       `json:"findings"`
	ScanQuality string              `json:"scan_quality"`
}

type wireFinding struct {
	Metric          string              `json:"metric"`
	Value           jsoniter.RawMessage `json:"value"`
	Unit            string              `json:"unit"`
	TargetFieldHint string              `json:"target_field_hint"`
	Confidence      float64             `json:"confidence"`
}

// Decode turns a raw model response into a Plan. It never fails: anything
// that cannot be decoded becomes a malformedResponse Failure.
func Decode(raw string) Plan {
	doc, err := llmutil.ExtractJSONObject(raw)
	if err != nil {
		return Fail(ErrMalformedResponse, err.Error())
	}

	var w wirePlan
	if err := json.Unmarshal([]byte(doc), &w); err != nil {
		return Fail(ErrMalformedResponse, fmt.Sprintf("undecodable plan: %v (response: %s)", err, llmutil.TruncateString(doc, 300)))
	}

	p := Plan{
		Thought:     strings.TrimSpace(w.Thought),
		Reasoning:   strings.TrimSpace(w.Reasoning),
		ScanQuality: w.ScanQuality,
	}
	p.Warnings = append(p.Warnings, CheckSchema(doc)...)
	p.Findings = decodeFindings(w.Findings, &p)
	p.Step = decodeStep(w, &p)
	return p
}

// decodeStep applies the precedence rules: a non-empty action always wins,
// findings alone yield FindingsOnly, and neither yields a suspect Unrecognized.
func decodeStep(w wirePlan, p *Plan) Step {
	name := strings.TrimSpace(w.Action)
	action := ActionType(strings.ToLower(name))

	if action == "" {
		if len(p.Findings) > 0 {
			return FindingsOnly{}
		}
		p.Suspect = true
		p.warn("response carried neither an action nor findings")
		return Unrecognized{}
	}
	if len(p.Findings) > 0 {
		p.warn("findings accompanied action %q and are not acted on", name)
	}

	switch action {
	case ActionClick:
		at, cell := decodeCoordinate(w.Coordinate, p)
		return Click{At: at, Cell: cell}
	case ActionTypeText:
		at, cell := decodeCoordinate(w.Coordinate, p)
		return TypeText{At: at, Cell: cell, Text: decodeText(w.Text, p)}
	case ActionScroll:
		if w.Amount == nil {
			return Scroll{Amount: DefaultScrollAmount}
		}
		return Scroll{Amount: int(math.Round(*w.Amount)), Explicit: true}
	case ActionWait:
		if w.Duration == nil {
			return Wait{Duration: DefaultWaitDuration}
		}
		if *w.Duration < 0 || math.IsNaN(*w.Duration) || *w.Duration > 3600 {
			p.warn("wait duration %v out of range; using default", *w.Duration)
			return Wait{Duration: DefaultWaitDuration}
		}
		return Wait{Duration: time.Duration(*w.Duration * float64(time.Second)), Explicit: true}
	case ActionFinish:
		return Finish{}
	case ActionError:
		kind := strings.TrimSpace(w.ErrorKind)
		if kind == "" {
			kind = w.ErrorType
		}
		reason := strings.TrimSpace(w.Reason)
		if reason == "" {
			reason = p.Reasoning
		}
		if reason == "" {
			reason = "model reported an error"
		}
		return Failure{Kind: ParseErrorKind(kind), Reason: reason}
	default:
		if len(w.Coordinate) > 0 || len(w.Text) > 0 {
			p.warn("fields of unrecognized action %q ignored", name)
		}
		return Unrecognized{Name: name}
	}
}

// decodeCoordinate accepts [x, y] integers, a grid cell label such as "C4",
// and, with a warning, fractional numbers or a "x, y" string. Anything else
// leaves the coordinate nil for the executor to reject.
func decodeCoordinate(raw jsoniter.RawMessage, p *Plan) (Coordinate, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ""
	}

	var nums []float64
	if err := json.Unmarshal(raw, &nums); err == nil {
		out := roundAll(nums)
		for i, v := range nums {
			if float64(out[i]) != v {
				p.warn("non-integer coordinate %v rounded to %v", nums, []int(out))
				break
			}
		}
		return out, ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.Trim(strings.TrimSpace(s), "[]()")
		if _, _, err := frame.ParseLabel(s); err == nil {
			return nil, strings.ToUpper(s)
		}
		fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
		out := make([]float64, 0, len(fields))
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				p.warn("unparseable coordinate %q", s)
				return nil, ""
			}
			out = append(out, v)
		}
		coord := roundAll(out)
		p.warn("string coordinate %q coerced to %v", s, []int(coord))
		return coord, ""
	}

	p.warn("coordinate has unexpected shape: %s", llmutil.TruncateString(string(raw), 80))
	return nil, ""
}

// decodeText accepts strings and bare numbers ("7.2" and 7.2 type the same).
func decodeText(raw jsoniter.RawMessage, p *Plan) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return string(raw)
	}
	p.warn("text has unexpected shape: %s", llmutil.TruncateString(string(raw), 80))
	return ""
}

func decodeFindings(in []wireFinding, p *Plan) []Finding {
	if len(in) == 0 {
		return nil
	}
	out := make([]Finding, 0, len(in))
	for i, f := range in {
		if strings.TrimSpace(f.Metric) == "" {
			p.warn("finding %d has no metric; dropped", i)
			continue
		}
		out = append(out, Finding{
			Metric:          strings.TrimSpace(f.Metric),
			Value:           decodeText(f.Value, p),
			Unit:            f.Unit,
			TargetFieldHint: f.TargetFieldHint,
			Confidence:      f.Confidence,
		})
	}
	return out
}

func roundAll(in []float64) Coordinate {
	out := make(Coordinate, len(in))
	for i, v := range in {
		out[i] = int(math.Round(v))
	}
	return out
}

func (p *Plan) warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}
