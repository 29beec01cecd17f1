package chunk

import (
	"bytes"
	"strings"
	"testing"
)

func collect(results []Result, kind Kind) []Result {
	var out []Result
	for _, r := range results {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func TestDecoder_WholeLines(t *testing.T) {
	d := NewDecoder()

	input := `{"message":{"role":"assistant","content":"Hel"},"done":false}` + "\n" +
		`{"message":{"role":"assistant","content":"lo"},"done":false}` + "\n"

	results := d.Feed([]byte(input))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Kind != KindDecoded {
			t.Fatalf("expected decoded, got %s", r.Kind)
		}
		if r.HasToolCall() {
			t.Fatal("unexpected tool call")
		}
	}

	var joined []byte
	for _, r := range results {
		joined = append(joined, r.Raw...)
	}
	if string(joined) != input {
		t.Errorf("raw bytes not preserved:\n got %q\nwant %q", joined, input)
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", d.Buffered())
	}
}

func TestDecoder_SplitAcrossChunks(t *testing.T) {
	d := NewDecoder()
	line := `{"message":{"role":"assistant","content":"partial"},"done":false}` + "\n"

	first := d.Feed([]byte(line[:17]))
	if len(first) != 1 || first[0].Kind != KindIncomplete {
		t.Fatalf("expected a single incomplete result, got %+v", first)
	}
	if d.Buffered() != 17 {
		t.Errorf("Buffered() = %d, want 17", d.Buffered())
	}

	second := d.Feed([]byte(line[17:]))
	decoded := collect(second, KindDecoded)
	if len(decoded) != 1 {
		t.Fatalf("expected 1 decoded result, got %d", len(decoded))
	}
	if string(decoded[0].Raw) != line {
		t.Errorf("Raw = %q, want %q", decoded[0].Raw, line)
	}
}

func TestDecoder_ByteAtATimePreservesStream(t *testing.T) {
	d := NewDecoder()
	input := `{"a":1}` + "\n" + `{"b":"x\ny"}` + "\r\n" + `{"c":[1,2,3]}`

	var out bytes.Buffer
	for i := 0; i < len(input); i++ {
		for _, r := range d.Feed([]byte{input[i]}) {
			out.Write(r.Raw)
		}
	}
	for _, r := range d.Close() {
		out.Write(r.Raw)
	}

	if out.String() != input {
		t.Errorf("stream not preserved:\n got %q\nwant %q", out.String(), input)
	}
}

func TestDecoder_ToolCallObjectArguments(t *testing.T) {
	d := NewDecoder()
	chunk := `{"message": {"tool_calls": [{"function": {"name": "get_team_info", "arguments": {"team_name": "Lakers"}}}]}}`

	results := d.Feed([]byte(chunk))
	if len(results) != 1 || !results[0].HasToolCall() {
		t.Fatalf("expected a tool call result, got %+v", results)
	}

	directive := results[0].Directive
	if directive.Name != "get_team_info" {
		t.Errorf("Name = %q, want get_team_info", directive.Name)
	}
	if string(directive.Arguments) != `{"team_name": "Lakers"}` {
		t.Errorf("Arguments = %s", directive.Arguments)
	}
}

func TestDecoder_OnlyFirstToolCallHonored(t *testing.T) {
	chunk := `{"message":{"tool_calls":[` +
		`{"function":{"name":"first","arguments":{}}},` +
		`{"function":{"name":"second","arguments":{}}}]}}`

	directive := ProbeToolCall([]byte(chunk))
	if directive == nil || directive.Name != "first" {
		t.Fatalf("expected first tool call, got %+v", directive)
	}
}

func TestProbeToolCall(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantNil  bool
		wantArgs string
	}{
		{name: "no message", input: `{"done":true}`, wantNil: true},
		{name: "no tool calls", input: `{"message":{"content":"hi"}}`, wantNil: true},
		{name: "empty tool calls", input: `{"message":{"tool_calls":[]}}`, wantNil: true},
		{name: "null tool calls", input: `{"message":{"tool_calls":null}}`, wantNil: true},
		{
			name:     "string arguments",
			input:    `{"message":{"tool_calls":[{"function":{"name":"f","arguments":"{\"season\":2023}"}}]}}`,
			wantArgs: `{"season":2023}`,
		},
		{
			name:     "missing arguments",
			input:    `{"message":{"tool_calls":[{"function":{"name":"get_player_injuries"}}]}}`,
			wantArgs: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProbeToolCall([]byte(tt.input))
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected directive, got nil")
			}
			if string(got.Arguments) != tt.wantArgs {
				t.Errorf("Arguments = %s, want %s", got.Arguments, tt.wantArgs)
			}
		})
	}
}

func TestDecoder_CloseReportsMalformedTerminal(t *testing.T) {
	d := NewDecoder()

	results := d.Feed([]byte(`{"message":{"content":"cut`))
	if len(results) != 1 || results[0].Kind != KindIncomplete {
		t.Fatalf("expected incomplete, got %+v", results)
	}

	final := d.Close()
	if len(final) != 1 || final[0].Kind != KindMalformedTerminal {
		t.Fatalf("expected malformed terminal, got %+v", final)
	}
	if string(final[0].Raw) != `{"message":{"content":"cut` {
		t.Errorf("Raw = %q", final[0].Raw)
	}
	if d.Close() != nil {
		t.Error("second Close should return nothing")
	}
}

func TestDecoder_CloseWhitespaceTail(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte(`{"done":true}`))
	tail := d.Feed([]byte("\n"))
	if len(tail) != 1 || tail[0].Kind != KindIncomplete {
		t.Fatalf("expected pending whitespace, got %+v", tail)
	}

	final := d.Close()
	if len(final) != 1 || final[0].Kind != KindDecoded || string(final[0].Raw) != "\n" {
		t.Fatalf("expected whitespace tail as decoded, got %+v", final)
	}
}

func TestDecoder_MaxFrameBytes(t *testing.T) {
	d := NewDecoder(WithMaxFrameBytes(8))

	results := d.Feed([]byte(`{"content":"` + strings.Repeat("x", 16)))
	if len(results) != 1 || results[0].Kind != KindMalformedTerminal {
		t.Fatalf("expected malformed terminal past frame limit, got %+v", results)
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", d.Buffered())
	}
}

func TestKind_String(t *testing.T) {
	if KindDecoded.String() != "decoded" || KindIncomplete.String() != "incomplete" ||
		KindMalformedTerminal.String() != "malformed_terminal" {
		t.Error("unexpected Kind string")
	}
}

func TestDecoder_BadLineMidStream(t *testing.T) {
	d := NewDecoder()

	toolCall := `{"message":{"tool_calls":[{"function":{"name":"get_team_info","arguments":{"team_name":"Lakers"}}}]}}` + "\n"
	input := `{"message":{"content":"a"}}` + "\n" + "not json\n" + toolCall + `{"message":{"content":"b"}}` + "\n"

	results := d.Feed([]byte(input))
	kinds := make([]Kind, len(results))
	for i, r := range results {
		kinds[i] = r.Kind
	}
	want := []Kind{KindDecoded, KindMalformedTerminal, KindDecoded, KindDecoded}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", kinds, want)
		}
	}

	if string(results[1].Raw) != "not json\n" {
		t.Errorf("malformed Raw = %q", results[1].Raw)
	}
	if !results[2].HasToolCall() || results[2].Directive.Name != "get_team_info" {
		t.Errorf("tool call after the bad line not detected: %+v", results[2])
	}

	var joined []byte
	for _, r := range results {
		joined = append(joined, r.Raw...)
	}
	if string(joined) != input {
		t.Errorf("raw bytes not preserved:\n got %q\nwant %q", joined, input)
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", d.Buffered())
	}
}

func TestDecoder_TruncatedLineFollowedByValue(t *testing.T) {
	d := NewDecoder()

	results := d.Feed([]byte(`{"message":{"content":"x"}` + "\n" + `{"done":true}` + "\n"))
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	if results[0].Kind != KindMalformedTerminal || string(results[0].Raw) != `{"message":{"content":"x"}`+"\n" {
		t.Errorf("first = %s %q", results[0].Kind, results[0].Raw)
	}
	if results[1].Kind != KindDecoded || string(results[1].Raw) != `{"done":true}`+"\n" {
		t.Errorf("second = %s %q", results[1].Kind, results[1].Raw)
	}
}

func TestDecoder_BadLineSplitAcrossChunks(t *testing.T) {
	d := NewDecoder()

	first := d.Feed([]byte("not js"))
	if len(first) != 1 || first[0].Kind != KindIncomplete {
		t.Fatalf("an unterminated bad line should wait, got %+v", first)
	}

	rest := d.Feed([]byte("on\n" + `{"done":true}` + "\n"))
	if len(rest) != 2 || rest[0].Kind != KindMalformedTerminal || rest[1].Kind != KindDecoded {
		t.Fatalf("results = %+v", rest)
	}
	if string(rest[0].Raw) != "not json\n" {
		t.Errorf("malformed Raw = %q", rest[0].Raw)
	}
}

func TestDecoder_MultiLineValue(t *testing.T) {
	pretty := "{\n  \"message\": {\"content\": \"hi\"},\n  \"done\": true\n}\n"

	whole := NewDecoder().Feed([]byte(pretty))
	if len(whole) != 1 || whole[0].Kind != KindDecoded || string(whole[0].Raw) != pretty {
		t.Fatalf("whole = %+v", whole)
	}

	d := NewDecoder()
	if r := d.Feed([]byte(pretty[:20])); len(r) != 1 || r[0].Kind != KindIncomplete {
		t.Fatalf("partial = %+v", r)
	}
	r := d.Feed([]byte(pretty[20:]))
	if len(r) != 1 || r[0].Kind != KindDecoded || string(r[0].Raw) != pretty {
		t.Fatalf("completed = %+v", r)
	}
}

func TestDecoder_LargeFrameInSmallReads(t *testing.T) {
	d := NewDecoder()
	line := `{"message":{"content":"` + strings.Repeat("x", 1<<20) + `"},"done":true}` + "\n"

	const read = 32 * 1024
	var results []Result
	for off := 0; off < len(line); off += read {
		results = d.Feed([]byte(line[off:min(off+read, len(line))]))
		if off+read < len(line) && (len(results) != 1 || results[0].Kind != KindIncomplete) {
			t.Fatalf("offset %d: results = %+v", off, results)
		}
	}
	if len(results) != 1 || results[0].Kind != KindDecoded || len(results[0].Raw) != len(line) {
		t.Fatalf("final results = %d", len(results))
	}
}
