package indengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	goredis "github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"ta-engine/config"
	"ta-engine/internal/indicator"
	redisstore "ta-engine/internal/store/redis"
)

// Router builds the HTTP surface:
//
//	GET    /healthz                  service health
//	GET    /metrics                  Prometheus metrics
//	GET    /indicators?tf=&key=      newest indicator values
//	GET    /signals                  newest strategy entries
//	GET    /strategies               registered strategies
//	POST   /strategies               register a strategy (config.StrategyConfig JSON)
//	DELETE /strategies/{handle}      unregister
//	POST   /reload                   replace indicator configs
//	GET    /ws                       WebSocket fan-out
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/healthz", s.Health)
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	r.Get("/indicators", s.handleIndicators)
	r.Get("/signals", s.handleSignals)
	r.Route("/strategies", func(r chi.Router) {
		r.Get("/", s.handleListStrategies)
		r.Post("/", s.handleRegisterStrategy)
		r.Delete("/{handle}", s.handleUnregisterStrategy)
	})
	limiter := rate.NewLimiter(rate.Limit(s.cfg.ReloadRPS), 1)
	r.With(rateLimit(limiter)).Post("/reload", s.handleReload)
	if s.Hub != nil {
		r.Method(http.MethodGet, "/ws", s.Hub)
	}
	return r
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				slog.Warn("rate limit exceeded", "path", r.URL.Path, "remote", r.RemoteAddr)
				w.Header().Set("Retry-After", "1")
				writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	render.Status(r, code)
	render.JSON(w, r, map[string]string{
		"error":      err.Error(),
		"request_id": middleware.GetReqID(r.Context()),
	})
}

func (s *Service) handleIndicators(w http.ResponseWriter, r *http.Request) {
	tf := 0
	if v := r.URL.Query().Get("tf"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid tf %q", v))
			return
		}
		tf = n
	}
	results := s.LatestResults(tf, r.URL.Query().Get("key"))
	sort.Slice(results, func(i, j int) bool { return results[i].StreamKey() < results[j].StreamKey() })
	render.JSON(w, r, results)
}

func (s *Service) handleSignals(w http.ResponseWriter, r *http.Request) {
	sigs := s.LatestSignals()
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].StreamKey() < sigs[j].StreamKey() })
	render.JSON(w, r, sigs)
}

type strategyView struct {
	Handle   int32  `json:"handle"`
	Name     string `json:"name"`
	ID       string `json:"id"`
	Lookback int    `json:"lookback"`
}

func (s *Service) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	handles := s.reg.Handles()
	out := make([]strategyView, 0, len(handles))
	for _, h := range handles {
		st, ok := s.reg.Get(h)
		if !ok {
			continue
		}
		out = append(out, strategyView{Handle: h, Name: st.Name, ID: st.ID(), Lookback: st.Lookback()})
	}
	render.JSON(w, r, out)
}

func (s *Service) handleRegisterStrategy(w http.ResponseWriter, r *http.Request) {
	var sc config.StrategyConfig
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	h, err := s.RegisterStrategy(sc)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]int32{"handle": h})
}

func (s *Service) handleUnregisterStrategy(w http.ResponseWriter, r *http.Request) {
	h, err := strconv.ParseInt(chi.URLParam(r, "handle"), 10, 32)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid handle: %w", err))
		return
	}
	if !s.host.Unregister(int32(h)) {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("handle %d not registered", h))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReload accepts either a JSON array of TF configs or "TYPE:PERIOD,..."
// specs applied to every enabled timeframe.
func (s *Service) handleReload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	configs, err := s.parseReload(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	kept, added, err := s.Reload(configs)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	render.JSON(w, r, map[string]any{"status": "ok", "kept": kept, "added": added})
}

func (s *Service) parseReload(body []byte) ([]indicator.TFIndicatorConfig, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var configs []indicator.TFIndicatorConfig
		if err := json.Unmarshal(body, &configs); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return configs, nil
	}
	specs, err := config.ParseIndicatorSpecs(string(body))
	if err != nil {
		return nil, err
	}
	return config.ForTFs(s.engine.TFs(), specs), nil
}

// Subscriber opens a Redis pub/sub subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) *goredis.PubSub
}

// WatchReloads applies reload requests published on the Redis config
// channel until ctx is cancelled.
func (s *Service) WatchReloads(ctx context.Context, sub Subscriber) {
	pubsub := sub.Subscribe(ctx, redisstore.ReloadChannel)
	defer pubsub.Close()
	slog.Info("subscribed for config reloads", "channel", redisstore.ReloadChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			configs, err := s.parseReload([]byte(msg.Payload))
			if err != nil {
				slog.Warn("ignoring config update", "error", err)
				continue
			}
			kept, added, err := s.Reload(configs)
			if err != nil {
				slog.Warn("config reload rejected", "error", err)
				continue
			}
			slog.Info("config reloaded", "kept", kept, "added", added)
		}
	}
}
