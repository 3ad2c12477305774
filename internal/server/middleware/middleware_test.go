package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"

	"aisuite/internal/pkg/ctxutil"
	httputil "aisuite/internal/pkg/http"
	"aisuite/internal/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeError(rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	var resp httputil.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return resp
}

func TestRateLimiter(t *testing.T) {
	Convey("令牌用完后拒绝，时间推进后恢复", t, func() {
		l := NewRateLimiter(1, 2)
		now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return now }

		So(l.Allow("u1"), ShouldBeTrue)
		So(l.Allow("u1"), ShouldBeTrue)
		So(l.Allow("u1"), ShouldBeFalse)
		So(l.Allow("u2"), ShouldBeTrue)

		now = now.Add(time.Second)
		So(l.Allow("u1"), ShouldBeTrue)
	})

	Convey("rps 为 0 时不限流", t, func() {
		l := NewRateLimiter(0, 0)
		for i := 0; i < 100; i++ {
			So(l.Allow("u1"), ShouldBeTrue)
		}
	})

	Convey("长时间空闲的用户被清理", t, func() {
		l := NewRateLimiter(1, 1)
		now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return now }

		l.Allow("idle")
		now = now.Add(limiterIdleTTL + time.Minute)
		l.Allow("active")
		So(l.visitors, ShouldNotContainKey, "idle")
		So(l.visitors, ShouldContainKey, "active")
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	Convey("超过限额返回 429", t, func() {
		l := NewRateLimiter(1, 1)
		r := gin.New()
		r.Use(func(c *gin.Context) { c.Set("user_id", "user-1"); c.Next() })
		r.Use(RateLimit(l))
		r.POST("/gen", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gen", nil))
		So(rec.Code, ShouldEqual, http.StatusNoContent)

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gen", nil))
		So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
		So(rec.Header().Get("Retry-After"), ShouldEqual, "1")
		So(decodeError(rec).Code, ShouldEqual, httputil.CodeTooManyRequests)
	})
}

func TestAuth(t *testing.T) {
	j := jwt.NewJWT("test-secret", time.Hour)

	newRouter := func() *gin.Engine {
		r := gin.New()
		r.Use(Auth(j))
		r.GET("/me", func(c *gin.Context) {
			userID, _ := ctxutil.GetUserID(c.Request.Context())
			wsID, _ := ctxutil.GetWorkspaceID(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": userID, "workspace_id": wsID, "gin_user": c.GetString("user_id")})
		})
		return r
	}

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		newRouter().ServeHTTP(rec, req)
		return rec
	}

	Convey("有效 token 写入用户与工作空间", t, func() {
		token, err := j.GenerateToken("user-1", "ws-1", "alice", "user")
		So(err, ShouldBeNil)

		rec := do("Bearer " + token)
		So(rec.Code, ShouldEqual, http.StatusOK)

		var body map[string]string
		So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
		So(body["user_id"], ShouldEqual, "user-1")
		So(body["workspace_id"], ShouldEqual, "ws-1")
		So(body["gin_user"], ShouldEqual, "user-1")
	})

	Convey("缺少或格式错误的 header", t, func() {
		rec := do("")
		So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		So(decodeError(rec).Code, ShouldEqual, httputil.CodeUnauthorized)

		rec = do("Basic abc")
		So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		So(decodeError(rec).Code, ShouldEqual, httputil.CodeUnauthorized)
	})

	Convey("无效、过期或缺少工作空间的 token", t, func() {
		rec := do("Bearer not-a-jwt")
		So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		So(decodeError(rec).Code, ShouldEqual, httputil.CodeInvalidToken)

		other, _ := jwt.NewJWT("other-secret", time.Hour).GenerateToken("user-1", "ws-1", "alice", "user")
		So(do("Bearer "+other).Code, ShouldEqual, http.StatusUnauthorized)

		expired, _ := jwt.NewJWT("test-secret", -time.Minute).GenerateToken("user-1", "ws-1", "alice", "user")
		rec = do("Bearer " + expired)
		So(decodeError(rec).Message, ShouldEqual, "Token已过期")

		noWorkspace, _ := j.GenerateToken("user-1", "", "alice", "user")
		rec = do("Bearer " + noWorkspace)
		So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		So(decodeError(rec).Code, ShouldEqual, httputil.CodeInvalidToken)
	})
}

func TestRequestIDAndRecovery(t *testing.T) {
	Convey("沿用客户端的 request id", t, func() {
		r := gin.New()
		r.Use(RequestID())
		r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		So(rec.Body.String(), ShouldEqual, "req-123")
		So(rec.Header().Get(RequestIDHeader), ShouldEqual, "req-123")

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		So(rec.Header().Get(RequestIDHeader), ShouldNotBeEmpty)
	})

	Convey("panic 返回 500", t, func() {
		r := gin.New()
		r.Use(RequestID(), Recovery())
		r.GET("/boom", func(c *gin.Context) { panic("boom") })

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		So(decodeError(rec).Code, ShouldEqual, httputil.CodePanic)
	})

	Convey("CORS 预检请求返回 204", t, func() {
		r := gin.New()
		r.Use(CORS())
		r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", "http://app.example.com")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		So(rec.Code, ShouldEqual, http.StatusNoContent)
		So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "http://app.example.com")
	})
}
