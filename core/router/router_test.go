package router

import "testing"

func TestStaticMatch(t *testing.T) {
	r := New()
	if err := r.Add("GET", "/ping", "ping-handler"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var params ParamArray
	h, err := r.Match("GET", "/ping", &params)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if h != "ping-handler" {
		t.Fatalf("Match() = %v, want ping-handler", h)
	}
	if params.Len() != 0 {
		t.Fatalf("expected no params, got %d", params.Len())
	}
}

func TestParamCapture(t *testing.T) {
	r := New()
	if err := r.Add("GET", "/users/{id}", "user-handler"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var params ParamArray
	h, err := r.Match("GET", "/users/42", &params)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if h != "user-handler" {
		t.Fatalf("Match() = %v", h)
	}
	v, ok := params.Lookup("id")
	if !ok || v != "42" {
		t.Fatalf("params.Lookup(id) = %q, %v", v, ok)
	}
}

func TestFourParamsCaptureAndFifthDropped(t *testing.T) {
	r := New()
	err := r.Add("GET", "/a/{p1}/{p2}/{p3}/{p4}/{p5}", "h")
	if err != ErrDuplicateParamName && err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err != nil {
		// duplicate name check doesn't apply here, params are distinct;
		// any other error is unexpected.
		t.Fatalf("Add: %v", err)
	}

	var params ParamArray
	h, err := r.Match("GET", "/a/1/2/3/4/5", &params)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if h != "h" {
		t.Fatalf("Match() = %v", h)
	}
	if params.Len() != MaxParams {
		t.Fatalf("params.Len() = %d, want %d (fifth must be dropped)", params.Len(), MaxParams)
	}
	for i, want := range []string{"1", "2", "3", "4"} {
		got := params.Get(i)
		if got.Value != want {
			t.Fatalf("params.Get(%d) = %+v, want value %q", i, got, want)
		}
	}
}

func TestStaticBeatsParamSameDepth(t *testing.T) {
	r := New()
	r.Add("GET", "/users/me", "static-handler")
	r.Add("GET", "/users/{id}", "param-handler")

	var params ParamArray
	h, err := r.Match("GET", "/users/me", &params)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if h != "static-handler" {
		t.Fatalf("Match() = %v, want static-handler to win at same depth", h)
	}
	if params.Len() != 0 {
		t.Fatalf("static match should not capture params, got %d", params.Len())
	}

	params.Reset()
	h, err = r.Match("GET", "/users/7", &params)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if h != "param-handler" {
		t.Fatalf("Match() = %v, want param-handler for non-static segment", h)
	}
}

func TestNoBacktrackingOnceParamTaken(t *testing.T) {
	// A static child under the param node matches normally. But once the
	// static edge "new" is taken at the same depth, the param edge is not
	// retried when the rest of the path fails, so /items/new/edit misses
	// even though /items/{id}/edit would have matched it.
	r := New()
	r.Add("GET", "/items/{id}/edit", "edit-handler")
	r.Add("GET", "/items/new", "new-handler")

	var params ParamArray
	h, err := r.Match("GET", "/items/9/edit", &params)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if h != "edit-handler" {
		t.Fatalf("Match() = %v", h)
	}
	v, _ := params.Lookup("id")
	if v != "9" {
		t.Fatalf("params id = %q, want 9", v)
	}

	params.Reset()
	if _, err := r.Match("GET", "/items/new/edit", &params); err != ErrNoMatch {
		t.Fatalf("Match(/items/new/edit) = %v, want ErrNoMatch (no backtracking)", err)
	}
}

func TestMethodNotRegisteredAtNode(t *testing.T) {
	r := New()
	r.Add("GET", "/ping", "h")

	var params ParamArray
	_, err := r.Match("POST", "/ping", &params)
	if err != ErrNoMatch {
		t.Fatalf("Match(POST) = %v, want ErrNoMatch", err)
	}
}

func TestNoMatch(t *testing.T) {
	r := New()
	r.Add("GET", "/ping", "h")

	var params ParamArray
	_, err := r.Match("GET", "/missing", &params)
	if err != ErrNoMatch {
		t.Fatalf("Match(/missing) = %v, want ErrNoMatch", err)
	}
}

func TestEmptyParamNameRejected(t *testing.T) {
	r := New()
	if err := r.Add("GET", "/a/{}", "h"); err != ErrEmptyParamName {
		t.Fatalf("Add with empty param name = %v, want ErrEmptyParamName", err)
	}
}

func TestDuplicateParamNameRejected(t *testing.T) {
	r := New()
	if err := r.Add("GET", "/a/{id}/{id}", "h"); err != ErrDuplicateParamName {
		t.Fatalf("Add with duplicate param name = %v, want ErrDuplicateParamName", err)
	}
}

func TestZeroParamSegments(t *testing.T) {
	r := New()
	r.Add("GET", "/", "root-handler")

	var params ParamArray
	h, err := r.Match("GET", "/", &params)
	if err != nil {
		t.Fatalf("Match(/): %v", err)
	}
	if h != "root-handler" {
		t.Fatalf("Match(/) = %v", h)
	}
}
