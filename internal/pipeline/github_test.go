package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v60/github"

	"github.com/everstacklabs/coverwatch/internal/report"
)

func testGitHubClient(t *testing.T, mux *http.ServeMux) (*github.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gh := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parsing server URL: %v", err)
	}
	gh.BaseURL = base
	return gh, srv
}

func TestPublishCommentCreatesWhenUnmarked(t *testing.T) {
	var created string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `[{"id": 1, "body": "unrelated chatter"}]`)
		case http.MethodPost:
			var c github.IssueComment
			if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
				t.Errorf("decoding comment: %v", err)
			}
			created = c.GetBody()
			fmt.Fprint(w, `{"id": 42}`)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})
	gh, _ := testGitHubClient(t, mux)

	body := report.Marker + "\nreport body"
	id, updated, err := publishComment(context.Background(), gh, "acme", "api", 7, body)
	if err != nil {
		t.Fatalf("publishComment failed: %v", err)
	}
	if updated {
		t.Error("expected a new comment, not an update")
	}
	if id != 42 {
		t.Errorf("unexpected comment ID %d", id)
	}
	if created != body {
		t.Errorf("unexpected created body: %q", created)
	}
}

func TestPublishCommentUpdatesMarked(t *testing.T) {
	var edited bool
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("marked comment already exists, no %s expected", r.Method)
		}
		fmt.Fprintf(w, `[{"id": 1, "body": "chatter"}, {"id": 9, "body": %q}]`, report.Marker+"\nold report")
	})
	mux.HandleFunc("/repos/acme/api/issues/comments/9", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		edited = true
		fmt.Fprint(w, `{"id": 9}`)
	})
	gh, _ := testGitHubClient(t, mux)

	id, updated, err := publishComment(context.Background(), gh, "acme", "api", 7, report.Marker+"\nnew report")
	if err != nil {
		t.Fatalf("publishComment failed: %v", err)
	}
	if !updated {
		t.Error("expected the marked comment to be updated in place")
	}
	if id != 9 {
		t.Errorf("expected comment ID 9, got %d", id)
	}
	if !edited {
		t.Error("EditComment was never called")
	}
}

func TestFindMarkedCommentFollowsPagination(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprintf(w, `[{"id": 8, "body": %q}]`, report.Marker+"\nreport")
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/api/issues/7/comments?page=2>; rel="next"`, srvURL))
		fmt.Fprint(w, `[{"id": 3, "body": "chatter"}]`)
	})
	gh, srv := testGitHubClient(t, mux)
	srvURL = srv.URL

	id, err := findMarkedComment(context.Background(), gh, "acme", "api", 7)
	if err != nil {
		t.Fatalf("findMarkedComment failed: %v", err)
	}
	if id != 8 {
		t.Errorf("expected marked comment 8 on page two, got %d", id)
	}
}

func TestChangedFilesFollowsPagination(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"filename": "src/b.py", "status": "added"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/api/pulls/7/files?page=2>; rel="next"`, srvURL))
		fmt.Fprint(w, `[{"filename": "src/a.py", "status": "modified"}]`)
	})
	gh, srv := testGitHubClient(t, mux)
	srvURL = srv.URL

	files, err := changedFiles(context.Background(), gh, "acme", "api", 7)
	if err != nil {
		t.Fatalf("changedFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files across pages, got %d", len(files))
	}
	if files[0].Filename != "src/a.py" || files[1].Filename != "src/b.py" {
		t.Errorf("unexpected files %+v", files)
	}
	if files[1].Status != "added" {
		t.Errorf("unexpected status %q", files[1].Status)
	}
}
