package earthengine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine/expr"
)

var testVis = Vis{Min: 0, Max: 2, Palette: []string{"#2E7D32", "#F9A825", "#C62828"}}

func newTestClient(t *testing.T, h http.HandlerFunc, creds Credentials) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIURL: srv.URL, Credentials: creds})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestTileURL_PostsExpressionAndBuildsTemplate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/projects/demo-project/maps" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth=%q", got)
		}
		b, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(b, &body); err != nil {
			t.Errorf("body: %v", err)
		}
		if body["fileFormat"] != "AUTO_JPEG_PNG" {
			t.Errorf("fileFormat=%v", body["fileFormat"])
		}
		ex, _ := body["expression"].(map[string]any)
		if _, ok := ex["result"].(string); !ok {
			t.Errorf("expression missing result: %v", ex)
		}
		vo, _ := body["visualizationOptions"].(map[string]any)
		if pc, _ := vo["paletteColors"].([]any); len(pc) != 3 {
			t.Errorf("paletteColors=%v", vo["paletteColors"])
		}
		_, _ = w.Write([]byte(`{"name":"projects/demo-project/maps/abc123"}`))
	}, Credentials{Project: "demo-project", Token: "tok"})

	tile, err := c.TileURL(context.Background(), expr.Constant(1).ToInt(), testVis)
	if err != nil {
		t.Fatalf("TileURL: %v", err)
	}
	want := "https://earthengine.googleapis.com/v1/projects/demo-project/maps/abc123/tiles/{z}/{x}/{y}"
	if tile.URLTemplate != want {
		t.Fatalf("template=%s want %s", tile.URLTemplate, want)
	}
}

func TestInitialize_MissingCredentials(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		atomic.AddInt32(&calls, 1)
	}, Credentials{Project: "p"})

	if err := c.Initialize(context.Background()); !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("err=%v want data unavailable", err)
	}
	if _, err := c.TileURL(context.Background(), expr.Constant(1), testVis); model.KindOf(err) != model.KindDataUnavailable {
		t.Fatalf("TileURL err=%v", err)
	}
	if calls != 0 {
		t.Fatalf("request sent without credentials")
	}
}

func TestTileURL_UpstreamErrorIsDataUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota", http.StatusForbidden)
	}, Credentials{Project: "p", Token: "t"})

	_, err := c.TileURL(context.Background(), expr.Constant(1), testVis)
	if model.KindOf(err) != model.KindDataUnavailable {
		t.Fatalf("err=%v", err)
	}
	if model.Detail(err) != msgTileFailed {
		t.Fatalf("detail=%q", model.Detail(err))
	}
}

func TestTileURL_EmptyNameIsInvalidMapID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":""}`))
	}, Credentials{Project: "p", Token: "t"})

	_, err := c.TileURL(context.Background(), expr.Constant(1), testVis)
	if model.Detail(err) != msgInvalidMapID {
		t.Fatalf("err=%v", err)
	}
}

func TestTileURL_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, Credentials{Project: "p", Token: "t"})

	for i := 0; i < 15; i++ {
		_, err := c.TileURL(context.Background(), expr.Constant(1), testVis)
		if model.KindOf(err) != model.KindDataUnavailable {
			t.Fatalf("call %d err=%v", i, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 10 {
		t.Fatalf("upstream calls=%d want 10 (breaker should open)", got)
	}
}

func TestTemplateFor(t *testing.T) {
	got := TemplateFor("projects/p/maps/m")
	if !strings.HasPrefix(got, "https://") || !strings.HasSuffix(got, "/tiles/{z}/{x}/{y}") {
		t.Fatalf("template=%s", got)
	}
}
