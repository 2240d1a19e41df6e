// Package server serves the account status block over HTTP.
package server

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neutromelabs/account-status/callback"
	"github.com/neutromelabs/account-status/presenter"
)

// StatusPath is the admin route for the account block.
const StatusPath = "/admin/neutromelabs/account-status"

const requestIDKey = "request_id"

// AdapterFactory builds the presenter for one request. Each request is one
// resolution cycle.
type AdapterFactory func(params url.Values, logger *zap.Logger) *presenter.Adapter

// Handler renders the account status block.
type Handler struct {
	newAdapter AdapterFactory
	logger     *zap.Logger
}

// NewHandler creates the handler.
func NewHandler(factory AdapterFactory, logger *zap.Logger) *Handler {
	return &Handler{newAdapter: factory, logger: logger}
}

var statusTemplate = template.Must(template.New("account_status").Parse(`<!DOCTYPE html>
<html>
<head><title>NeutromeLabs Account</title></head>
<body>
<div class="neutromelabs-account-status">
{{- if .Disabled }}
<p>{{ .Notice }}</p>
{{- else }}
{{- if .SignedIn }}
<p>Signed in as <strong>{{ .Email }}</strong></p>
{{- end }}
{{- if .StatusMessage }}
<p class="status">{{ .StatusMessage }}</p>
{{- end }}
{{- if .SignInURL }}
<a class="sign-in" href="{{ .SignInURL }}">{{ if .SignedIn }}Switch account{{ else }}Sign in{{ end }}</a>
{{- end }}
{{- end }}
</div>
</body>
</html>
`))

// AccountStatus renders the status block as HTML, or JSON when requested.
func (h *Handler) AccountStatus(c *gin.Context) {
	logger := h.logger.With(zap.String(requestIDKey, c.GetString(requestIDKey)))
	adapter := h.newAdapter(c.Request.URL.Query(), logger)
	view := adapter.Render(c.Request.Context())
	if view.SignInURL != "" {
		view.SignInURL += url.QueryEscape(returnPath(c.Request.URL))
	}

	if c.Query("format") == "json" || c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		c.JSON(http.StatusOK, view)
		return
	}
	c.HTML(http.StatusOK, "account_status", view)
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// returnPath is the current admin URL without the one-time callback.
func returnPath(u *url.URL) string {
	q := u.Query()
	q.Del(callback.Param)
	ret := url.URL{Path: u.Path, RawQuery: q.Encode()}
	return ret.String()
}

// RequestLogger tags each request with an id and logs its outcome.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)

		c.Next()

		logger.Info("http request",
			zap.String(requestIDKey, id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// NewRouter wires routes and middleware.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.SetHTMLTemplate(statusTemplate)

	r.GET("/healthz", h.Healthz)
	r.GET(StatusPath, h.AccountStatus)
	return r
}

// HTTPServer runs a router until its context is cancelled.
type HTTPServer struct {
	engine *gin.Engine
}

// NewHTTPServer wraps engine.
func NewHTTPServer(engine *gin.Engine) *HTTPServer {
	return &HTTPServer{engine: engine}
}

// Run serves on addr and shuts down gracefully when ctx is done.
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
