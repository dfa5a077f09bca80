package recorder

import (
	"net/http"

	"github.com/kcz17/dumpslow/views"
)

// Middleware times every request served by next and records slow ones under
// the view resolver maps the request path to. A handler which panics never
// reaches the recording step.
func (r *Recorder) Middleware(resolver views.Resolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := WithStart(req.Context(), r.clock.Now())
		next.ServeHTTP(w, req.WithContext(ctx))
		r.Finish(ctx, views.ViewFor(resolver, req.URL.Path), req.Method+" "+req.URL.RequestURI())
	})
}
