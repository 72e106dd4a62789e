package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// fakeDaemon answers the handful of Engine API routes DockerBackend uses.
type fakeDaemon struct {
	mu       sync.Mutex
	requests []*http.Request
	create   container.CreateRequest

	status   int    // response code for stop and remove
	waitBody string // JSON body returned by wait
}

func (d *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Drop the /v1.xx prefix.
	path := r.URL.Path
	if strings.HasPrefix(path, "/v1.") {
		path = path[strings.Index(path[1:], "/")+1:]
	}

	d.mu.Lock()
	d.requests = append(d.requests, r)
	status, waitBody := d.status, d.waitBody
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && path == "/images/json":
		w.Write([]byte(`[{"Id":"sha256:a","RepoTags":["ruby:3.3.0-alpine","ruby:3.2.2"]},{"Id":"sha256:b","RepoTags":[]}]`))
	case r.Method == http.MethodPost && path == "/containers/create":
		d.mu.Lock()
		err := json.NewDecoder(r.Body).Decode(&d.create)
		d.mu.Unlock()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"Id":"c0ffee","Warnings":[]}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/wait"):
		w.Write([]byte(waitBody))
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/stop"),
		r.Method == http.MethodDelete && strings.HasPrefix(path, "/containers/"):
		if status == 0 || status == http.StatusNoContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"message":"daemon says no"}`))
	default:
		http.NotFound(w, r)
	}
}

func (d *fakeDaemon) last() *http.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.requests) == 0 {
		return nil
	}
	return d.requests[len(d.requests)-1]
}

func newTestDocker(t *testing.T, d *fakeDaemon) *DockerBackend {
	t.Helper()
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)

	cli, err := client.NewClientWithOpts(
		client.WithHost("tcp://"+srv.Listener.Addr().String()),
		client.WithVersion("1.47"),
	)
	if err != nil {
		t.Fatalf("NewClientWithOpts: %v", err)
	}
	b := &DockerBackend{cli: cli}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestDockerCreate(t *testing.T) {
	d := &fakeDaemon{}
	b := newTestDocker(t, d)

	spec := DefaultPolicy().Spec("exec-1", "ruby:3.3.0-alpine", `puts 1`)
	id, err := b.Create(context.Background(), spec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "c0ffee" {
		t.Errorf("id = %q, want c0ffee", id)
	}
	if got := d.last().URL.Query().Get("name"); got != spec.Name {
		t.Errorf("name = %q, want %q", got, spec.Name)
	}

	d.mu.Lock()
	req := d.create
	d.mu.Unlock()
	if req.Image != "ruby:3.3.0-alpine" {
		t.Errorf("image = %q", req.Image)
	}
	if strings.Join(req.Cmd, " ") != strings.Join(spec.Cmd, " ") {
		t.Errorf("cmd = %q, want %q", req.Cmd, spec.Cmd)
	}
	if req.Tty || !req.AttachStdout || !req.AttachStderr {
		t.Errorf("tty=%v stdout=%v stderr=%v, want multiplexed stdout and stderr", req.Tty, req.AttachStdout, req.AttachStderr)
	}
	if !req.NetworkDisabled || req.HostConfig.NetworkMode != "none" {
		t.Errorf("network disabled=%v mode=%q, want isolated", req.NetworkDisabled, req.HostConfig.NetworkMode)
	}
	if req.HostConfig.Memory != spec.Memory || req.HostConfig.NanoCPUs != spec.NanoCPUs {
		t.Errorf("resources = %d/%d, want %d/%d", req.HostConfig.Memory, req.HostConfig.NanoCPUs, spec.Memory, spec.NanoCPUs)
	}
	if !req.HostConfig.AutoRemove {
		t.Error("expected auto remove")
	}
	if req.Labels["rubybox.execution"] != "exec-1" {
		t.Errorf("labels = %v", req.Labels)
	}
}

func TestDockerImageTags(t *testing.T) {
	b := newTestDocker(t, &fakeDaemon{})

	tags, err := b.ImageTags(context.Background())
	if err != nil {
		t.Fatalf("ImageTags: %v", err)
	}
	if strings.Join(tags, ",") != "ruby:3.3.0-alpine,ruby:3.2.2" {
		t.Errorf("tags = %v", tags)
	}
}

func TestDockerStopIsImmediate(t *testing.T) {
	d := &fakeDaemon{}
	b := newTestDocker(t, d)

	if err := b.Stop(context.Background(), "c0ffee"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := d.last().URL.Query().Get("t"); got != "0" {
		t.Errorf("stop timeout = %q, want 0", got)
	}

	d.mu.Lock()
	d.status = http.StatusNotFound
	d.mu.Unlock()
	if err := b.Stop(context.Background(), "gone"); err != nil {
		t.Errorf("Stop on missing unit = %v, want nil", err)
	}
}

func TestDockerRemove(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"removed", http.StatusNoContent, false},
		{"already gone", http.StatusNotFound, false},
		{"removal in progress", http.StatusConflict, false},
		{"daemon failure", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDaemon{status: tt.status}
			b := newTestDocker(t, d)

			err := b.Remove(context.Background(), "rubybox-exec-1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Remove = %v, wantErr %v", err, tt.wantErr)
			}
			r := d.last()
			if r.Method != http.MethodDelete || !strings.HasSuffix(r.URL.Path, "/containers/rubybox-exec-1") {
				t.Errorf("request = %s %s", r.Method, r.URL.Path)
			}
			if r.URL.Query().Get("force") != "1" {
				t.Errorf("force = %q, want 1", r.URL.Query().Get("force"))
			}
		})
	}
}

func TestDockerWait(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    int64
		wantErr string
	}{
		{"exit code", `{"StatusCode":3}`, 3, ""},
		{"wait error", `{"StatusCode":137,"Error":{"Message":"container killed"}}`, 137, "container killed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDaemon{waitBody: tt.body}
			b := newTestDocker(t, d)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			select {
			case st := <-b.Wait(ctx, "c0ffee"):
				if st.Code != tt.code {
					t.Errorf("code = %d, want %d", st.Code, tt.code)
				}
				switch {
				case tt.wantErr == "" && st.Err != nil:
					t.Errorf("err = %v, want nil", st.Err)
				case tt.wantErr != "" && (st.Err == nil || st.Err.Error() != tt.wantErr):
					t.Errorf("err = %v, want %q", st.Err, tt.wantErr)
				}
			case <-ctx.Done():
				t.Fatal("wait never reported")
			}
			if got := d.last().URL.Query().Get("condition"); got != "next-exit" {
				t.Errorf("condition = %q, want next-exit", got)
			}
		})
	}
}
