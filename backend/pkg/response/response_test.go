package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name               string
		total              int64
		page, pageSize     int
		wantPage, wantSize int
		wantTotalPages     int
	}{
		{"整除", 40, 2, 20, 2, 20, 2},
		{"有余数", 41, 1, 20, 1, 20, 3},
		{"空列表", 0, 1, 20, 1, 20, 0},
		{"页大小兜底", 5, 1, 0, 1, defaultPageSize, 1},
		{"页码兜底", 5, 0, 10, 1, 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.total, tt.page, tt.pageSize)
			if p.Page != tt.wantPage || p.PageSize != tt.wantSize || p.TotalPages != tt.wantTotalPages {
				t.Errorf("got %+v", p)
			}
		})
	}
}

func TestWrite_EchoesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(requestIDKey, "rid-123")

	Conflict(c, 20303, "排班冲突")

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != 20303 || body.RequestID != "rid-123" {
		t.Errorf("body = %+v", body)
	}
}

func TestWrite_WithoutRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, map[string]int{"n": 1})

	var raw map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["request_id"]; ok {
		t.Error("request_id 不应出现")
	}
	if raw["code"].(float64) != 0 {
		t.Errorf("code = %v", raw["code"])
	}
}
