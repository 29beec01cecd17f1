package toolloop

import (
	"net/http/httptest"
	"testing"
)

func TestRelay_Streaming(t *testing.T) {
	rec := httptest.NewRecorder()
	r := NewRelay(rec, true)

	if r.Committed() {
		t.Fatal("fresh relay should not be committed")
	}
	r.Write([]byte(`{"a":1}` + "\n"))
	if !r.Committed() {
		t.Error("streaming write should commit")
	}
	if !rec.Flushed {
		t.Error("streaming write should flush")
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentTypeNDJSON {
		t.Errorf("Content-Type = %s", ct)
	}

	r.Fail("boom")
	r.Fail("ignored")
	want := `{"a":1}` + "\n" + `{"error":"boom"}` + "\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestRelay_Buffered(t *testing.T) {
	rec := httptest.NewRecorder()
	r := NewRelay(rec, false)

	r.Write([]byte(`{"partial":`))
	if r.Committed() || rec.Body.Len() != 0 {
		t.Fatal("buffered write must not reach the client")
	}
	if r.Pending() != len(`{"partial":`) {
		t.Errorf("Pending() = %d", r.Pending())
	}
	r.Discard()

	r.Write([]byte(`{"done":true}`))
	if err := r.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if rec.Body.String() != `{"done":true}` {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentTypeJSON {
		t.Errorf("Content-Type = %s", ct)
	}
}

func TestRelay_BufferedFailDropsPending(t *testing.T) {
	rec := httptest.NewRecorder()
	r := NewRelay(rec, false)

	r.Write([]byte(`{"message":{"content":"half`))
	r.Fail("stream interrupted")

	if rec.Body.String() != `{"error":"stream interrupted"}` {
		t.Errorf("body = %q", rec.Body.String())
	}
	if !r.Failed() {
		t.Error("Failed() = false")
	}
}

func TestRelay_EmptyFlushWritesHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	r := NewRelay(rec, false)

	if err := r.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if rec.Code != 200 || rec.Header().Get("Content-Type") != ContentTypeJSON {
		t.Errorf("code = %d, headers = %v", rec.Code, rec.Header())
	}
	if r.Committed() {
		t.Error("an empty flush sends no bytes")
	}
}
