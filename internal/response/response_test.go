package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ok", func(c *gin.Context) {
		SuccessWithPagination(c, http.StatusOK, []int{1, 2}, NewPagination(2, 2, 5))
	})
	r.GET("/detail", func(c *gin.Context) {
		FailWithDetail(c, http.StatusBadRequest, ErrValidation, "bad option")
	})
	r.GET("/abort", func(c *gin.Context) {
		AbortFail(c, http.StatusForbidden, ErrForbidden)
		c.JSON(http.StatusOK, gin.H{"unreachable": true})
	})
	return r
}

func get(r *gin.Engine, path, requestID string) (*httptest.ResponseRecorder, Response) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if requestID != "" {
		req.Header.Set(HeaderRequestID, requestID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestSuccessWithPagination(t *testing.T) {
	w, body := get(newEngine(), "/ok", "")
	if w.Code != http.StatusOK || body.Error != nil {
		t.Fatalf("status = %d error = %+v", w.Code, body.Error)
	}
	if body.Pagination == nil || body.Pagination.TotalPages != 3 {
		t.Fatalf("pagination = %+v, want 3 pages", body.Pagination)
	}
	if body.Metadata.RequestID == "" || body.Metadata.RequestID != w.Header().Get(HeaderRequestID) {
		t.Fatalf("request id = %q header = %q", body.Metadata.RequestID, w.Header().Get(HeaderRequestID))
	}
}

func TestFailWithDetail(t *testing.T) {
	w, body := get(newEngine(), "/detail", "")
	if w.Code != http.StatusBadRequest || body.Error == nil {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if body.Error.Code != ErrValidation || body.Error.Fields["detail"] != "bad option" {
		t.Fatalf("error = %+v", body.Error)
	}
	if body.Error.Message == "" {
		t.Fatal("message missing")
	}
}

func TestAbortFailStopsHandler(t *testing.T) {
	w, body := get(newEngine(), "/abort", "")
	if w.Code != http.StatusForbidden || body.Error == nil || body.Error.Code != ErrForbidden {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "unreachable") {
		t.Fatal("handler kept writing after abort")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newEngine()

	if w, _ := get(r, "/ok", "trace-123.abc_9"); w.Header().Get(HeaderRequestID) != "trace-123.abc_9" {
		t.Fatalf("well-formed id replaced: %q", w.Header().Get(HeaderRequestID))
	}

	for _, bad := range []string{"has space", strings.Repeat("x", 65), "new\\nline"} {
		w, _ := get(r, "/ok", bad)
		if got := w.Header().Get(HeaderRequestID); got == bad || got == "" {
			t.Fatalf("id %q kept as %q", bad, got)
		}
	}
}
