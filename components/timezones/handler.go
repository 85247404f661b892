package timezones

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type choicesResponse struct {
	Data []Choice `json:"data"`
}

// Mux is satisfied by *http.ServeMux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// NewHandler returns a GET/HEAD handler answering zone searches with
// {"data": [{"value", "label"}]}.
func NewHandler(fns ...OptionFn) http.Handler {
	opts := NewOptions(fns...)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet+", "+http.MethodHead)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		zones := opts.Zones
		if zones == nil {
			loaded, err := DefaultZones()
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			zones = loaded
		}

		query := r.URL.Query()
		limit, _ := strconv.Atoi(strings.TrimSpace(query.Get(opts.LimitParam)))
		results := SearchChoices(zones, query.Get(opts.SearchParam), limit, opts)
		if results == nil {
			results = []Choice{}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		_ = json.NewEncoder(w).Encode(choicesResponse{Data: results})
	})
}

// RegisterRoutes mounts the handler at basePath + RoutePath and returns the
// pattern used.
func RegisterRoutes(mux Mux, basePath string, fns ...OptionFn) (string, error) {
	if mux == nil {
		return "", fmt.Errorf("timezones: missing mux")
	}
	opts := NewOptions(fns...)
	pattern := mountPath(basePath, opts.RoutePath)
	mux.Handle(pattern, NewHandler(fns...))
	return pattern, nil
}

func mountPath(basePath, routePath string) string {
	basePath = strings.TrimSpace(basePath)
	routePath = strings.TrimSpace(routePath)
	if !strings.HasPrefix(routePath, "/") {
		routePath = "/" + routePath
	}
	if basePath == "" || basePath == "/" {
		return routePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimRight(basePath, "/") + routePath
}
