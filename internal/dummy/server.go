package dummy

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"thor/internal/logging"
)

type ServerConfig struct {
	Port int
}

// NewHandler returns the dummy endpoints. "/" answers immediately, the others
// simulate latency profiles and failures.
func NewHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Hello, thor!"))
	})

	// 10-50ms
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		sleep(10, 40)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Fast response"))
	})

	// 100-300ms
	mux.HandleFunc("/medium", func(w http.ResponseWriter, r *http.Request) {
		sleep(100, 200)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Medium response"))
	})

	// 1s-2s
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		sleep(1000, 1000)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Slow response"))
	})

	// Usually 20ms, 5% of calls take 2s.
	mux.HandleFunc("/spike", func(w http.ResponseWriter, r *http.Request) {
		if rand.Float32() < 0.05 {
			time.Sleep(2 * time.Second)
		} else {
			time.Sleep(20 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Spikey response"))
	})

	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		rnd := rand.Float32()
		if rnd < 0.2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 Internal Server Error"))
		} else if rnd < 0.4 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("429 Too Many Requests"))
		} else {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		}
	})

	return mux
}

func sleep(minMs, jitterMs int) {
	time.Sleep(time.Duration(rand.Intn(jitterMs)+minMs) * time.Millisecond)
}

// Start serves NewHandler on cfg.Port in the background.
func Start(cfg ServerConfig) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("Dummy server running on http://localhost%s\n", addr)
	fmt.Println("   Endpoints: /, /fast, /medium, /slow, /spike, /error")

	server := &http.Server{
		Addr:    addr,
		Handler: NewHandler(),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Log.WithError(err).Error("dummy server failed")
		}
	}()
	return server
}
