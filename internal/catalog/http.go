package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ProductStore/pkg/kit"
)

const (
	defaultMaxBodyBytes = 10 << 20
	readyTimeout        = 1 * time.Second

	storedMessage = "Products stored successfully."
)

type Server struct {
	Store Store
	Log   *zap.Logger

	// MaxBodyBytes caps request bodies; zero means defaultMaxBodyBytes.
	MaxBodyBytes int64
	// WriteLimiter, when set, guards the replace endpoint.
	WriteLimiter *kit.IPRateLimiter
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.ready)

	var replace http.Handler = http.HandlerFunc(s.replace)
	if s.WriteLimiter != nil {
		replace = s.WriteLimiter.Middleware(replace)
	}

	r.Route("/products", func(pr chi.Router) {
		pr.Get("/", s.list)
		pr.Method(http.MethodPost, "/", replace)
		pr.Post("/details/", s.details)
		pr.Post("/details", s.details)
		pr.Get("/{item_id}", s.get)
	})

	return r
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Store.Ping(ctx); err != nil {
		s.logger().Warn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	products, err := s.Store.Load(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "list products", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, ProductList{Products: products})
}

func (s *Server) replace(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if err := decodeRequest(w, r, s.maxBodyBytes(), &req); err != nil {
		s.writeRequestError(w, r, err)
		return
	}

	products := req.products()
	if err := s.Store.Replace(r.Context(), products); err != nil {
		s.logger().Error("replace products failed", zap.Error(err), zap.Int("count", len(products)))
		kit.WriteError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger().Info("products replaced", zap.Int("count", len(products)))
	kit.WriteJSON(w, http.StatusOK, messageResponse{Message: storedMessage})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)

	products, err := s.Store.Load(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "get product", err)
		return
	}

	p, err := FindByID(products, id)
	if err != nil {
		s.writeStoreError(w, r, "get product", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) details(w http.ResponseWriter, r *http.Request) {
	var req detailsRequest
	if err := decodeRequest(w, r, s.maxBodyBytes(), &req); err != nil {
		s.writeRequestError(w, r, err)
		return
	}

	products, err := s.Store.Load(r.Context())
	if err != nil {
		s.writeStoreError(w, r, "product details", err)
		return
	}

	matched, err := FilterByIDs(products, req.ids())
	if err != nil {
		s.writeStoreError(w, r, "product details", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, ProductList{Products: matched})
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		notFound *ProductNotFoundError
		missing  *MissingProductsError
	)

	switch {
	case errors.Is(err, ErrCollectionNotFound):
		s.logger().Warn(op+": products file not found", zap.Error(err))
		kit.WriteError(w, r, http.StatusNotFound, "Products file not found")
	case errors.As(err, &notFound), errors.As(err, &missing):
		s.logger().Debug(op+": not found", zap.Error(err))
		kit.WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMalformedCollection):
		s.logger().Error(op+" failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "Unable to decode JSON data")
	default:
		s.logger().Error(op+" failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	var re *requestError
	if errors.As(err, &re) {
		kit.WriteError(w, r, re.status, re.detail)
		return
	}
	kit.WriteError(w, r, http.StatusUnprocessableEntity, err.Error())
}

func (s *Server) maxBodyBytes() int64 {
	if s.MaxBodyBytes > 0 {
		return s.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// itemID returns the decoded path identifier. chi matches on RawPath when
// the request carried escapes, so the param may still be escaped.
func itemID(r *http.Request) string {
	id := chi.URLParam(r, "item_id")
	if r.URL.RawPath == "" {
		return id
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}
