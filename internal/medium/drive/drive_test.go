package drive

import (
	"errors"
	"fmt"
	"testing"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/testutil/testlog"
	"google.golang.org/api/googleapi"
)

func TestTransientErrors(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		err  error
		want bool
	}{
		{&googleapi.Error{Code: 500}, true},
		{&googleapi.Error{Code: 503}, true},
		{fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 502}), true},
		{&googleapi.Error{Code: 429}, true},
		{&googleapi.Error{Code: 404}, false},
		{&googleapi.Error{Code: 403}, false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := transient(tc.err); got != tc.want {
			t.Fatalf("transient(%v) got=%v want=%v", tc.err, got, tc.want)
		}
	}
}

func TestMapErrNotFound(t *testing.T) {
	testlog.Start(t)
	if err := mapErr("f1", &googleapi.Error{Code: 404}); !errors.Is(err, medium.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	other := &googleapi.Error{Code: 500}
	if err := mapErr("f1", other); err != other {
		t.Fatalf("non-404 errors pass through, got %v", err)
	}
	if mapErr("f1", nil) != nil {
		t.Fatalf("nil stays nil")
	}
}

func TestFieldsPatch(t *testing.T) {
	testlog.Start(t)
	f := fieldsPatch(map[string]string{"hash_0": "YQ=="}, []string{"hash_1", "hash_0", "sync_status"})
	if f.AppProperties["hash_0"] != "YQ==" {
		t.Fatalf("set value missing: %v", f.AppProperties)
	}
	if len(f.NullFields) != 2 || f.NullFields[0] != "AppProperties.hash_1" || f.NullFields[1] != "AppProperties.sync_status" {
		t.Fatalf("null fields got=%v", f.NullFields)
	}
}

func TestListQueryEscapesFolder(t *testing.T) {
	testlog.Start(t)
	if got := listQuery("abc"); got != "'abc' in parents and trashed = false" {
		t.Fatalf("query got=%q", got)
	}
	if got := listQuery("a'b"); got != `'a\'b' in parents and trashed = false` {
		t.Fatalf("query got=%q", got)
	}
}
