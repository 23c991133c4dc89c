package fragserver

import (
	"math/rand"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pyropy/paster/core/fetcher"
	"github.com/pyropy/paster/lib/cmap"
)

// Options configures the fragment server.
type Options struct {
	// CorruptRate is the probability of serving a strip with a broken
	// checksum.
	CorruptRate float64
}

// Server hands out a random strip of the requested image set per request.
type Server struct {
	sets     *cmap.Map[int, *ImageSet]
	opts     Options
	log      *zap.SugaredLogger
	registry *prometheus.Registry
	served   *prometheus.CounterVec
}

func NewServer(log *zap.SugaredLogger, opts Options) *Server {
	served := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fragserver_responses_total", Help: "Fragment responses by image set and result"},
		[]string{"image", "result"},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(served)

	return &Server{
		sets:     cmap.NewMap[int, *ImageSet](),
		opts:     opts,
		log:      log,
		registry: registry,
		served:   served,
	}
}

// AddSet registers set under image index n, replacing any previous set.
func (s *Server) AddSet(n int, set *ImageSet) {
	s.sets.Set(n, set)
	s.log.Infow("image set", "status", "registered", "image", n, "strips", len(set.Strips),
		"width", set.Header.Width, "height", set.Header.Height)
}

// Sets returns the registered image indexes in ascending order.
func (s *Server) Sets() []int {
	keys := s.sets.Keys()
	sort.Ints(keys)

	return keys
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/image", s.serveFragment)
	r.Get("/healthz", s.healthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) serveFragment(w http.ResponseWriter, r *http.Request) {
	img := r.URL.Query().Get("img")

	n, err := strconv.Atoi(img)
	if err != nil {
		s.served.WithLabelValues(img, "bad_request").Inc()
		http.Error(w, "img must be an integer", http.StatusBadRequest)
		return
	}

	set, ok := s.sets.Get(n)
	if !ok {
		s.served.WithLabelValues(img, "not_found").Inc()
		http.NotFound(w, r)
		return
	}

	seq := rand.Intn(len(set.Strips))
	body := set.Strips[seq]
	result := "ok"

	if s.opts.CorruptRate > 0 && rand.Float64() < s.opts.CorruptRate {
		body = corrupt(body)
		result = "corrupted"
	}

	s.served.WithLabelValues(img, result).Inc()
	s.log.Debugw("serve", "image", n, "sequence", seq, "result", result,
		"request", middleware.GetReqID(r.Context()))

	w.Header().Set(fetcher.FragmentHeader, strconv.Itoa(seq))
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// corrupt returns a copy of strip whose final checksum no longer matches.
func corrupt(strip []byte) []byte {
	out := append([]byte(nil), strip...)
	out[len(out)-1] ^= 0xFF

	return out
}
