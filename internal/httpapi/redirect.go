package httpapi

import (
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/kerkhof/internal/redirect"
)

var redirectSkipPrefixes = []string{"/api/", "/assets/", "/_next/"}

var redirectSkipPaths = map[string]struct{}{
	"/metrics":     {},
	"/favicon.ico": {},
	"/robots.txt":  {},
	"/sitemap.xml": {},
}

var staticExtensions = map[string]struct{}{
	".css":   {},
	".gif":   {},
	".ico":   {},
	".jpeg":  {},
	".jpg":   {},
	".js":    {},
	".map":   {},
	".png":   {},
	".svg":   {},
	".txt":   {},
	".webp":  {},
	".woff":  {},
	".woff2": {},
	".xml":   {},
}

// RedirectMiddleware answers retired paths before routing. It must be
// installed with echo.Pre. The query string is carried over to the
// destination unchanged.
func RedirectMiddleware(table *redirect.Table, metrics *Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			if skipRedirect(req.URL.Path) {
				return next(c)
			}

			res, ok := table.Resolve(req.URL.Path)
			if !ok {
				return next(c)
			}

			target := res.Destination
			if rawQuery := req.URL.RawQuery; rawQuery != "" {
				target += "?" + rawQuery
			}
			metrics.observeRedirect(res.Rule)
			return c.Redirect(http.StatusMovedPermanently, target)
		}
	}
}

func skipRedirect(requestPath string) bool {
	for _, prefix := range redirectSkipPrefixes {
		if strings.HasPrefix(requestPath, prefix) {
			return true
		}
	}
	if _, ok := redirectSkipPaths[requestPath]; ok {
		return true
	}
	_, static := staticExtensions[strings.ToLower(path.Ext(requestPath))]
	return static
}
