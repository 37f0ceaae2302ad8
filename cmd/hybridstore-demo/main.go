// Command hybridstore-demo runs a scripted end-to-end walkthrough of the
// hybrid store — ingest a few documents and exercise the cache core
// once — then stays up serving a tiny go-chi mux
// (/healthz, /demo/search, plus the Connect-RPC facade) so the
// walkthrough's state can be poked interactively.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/spherical-ai/hybridstore/internal/config"
	"github.com/spherical-ai/hybridstore/internal/hybridstore"
	"github.com/spherical-ai/hybridstore/internal/ingestion"
	"github.com/spherical-ai/hybridstore/pkg/engine"
)

func main() {
	cfg := config.DefaultConfig()
	cfg.Audit.SQLitePath = ":memory:"

	eng, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	defer eng.Close()

	ctx := context.Background()

	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Suffix = " seeding demo data"
	sp.Writer = os.Stderr
	sp.Start()
	runScript(ctx, eng)
	sp.Stop()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Get("/healthz", handleHealthz)
	r.Get("/demo/search", handleSearch(eng))

	rpcPath, rpcHandler := engine.NewHandler(engine.NewService(eng))
	r.Mount(rpcPath, rpcHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("hybridstore-demo listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// runScript seeds the store: one text ingestion, one JSON ingestion,
// both tagged with the same singularity id.
func runScript(ctx context.Context, eng *engine.Engine) {
	singularity := int64(7)

	textResult, err := eng.Pipeline.Ingest(ctx, ingestion.Request{
		Payload:       []byte("Hybrid stores unify three backends into one logical entity set.\n\nPoints carry metadata and an optional vector. Segments connect them."),
		ResourceID:    "demo-doc-text",
		ContentType:   "text",
		SingularityID: &singularity,
	})
	if err != nil {
		log.Printf("demo text ingestion failed: %v", err)
	} else {
		log.Printf("ingested text resource %d with %d fragments", textResult.ResourcePointID, len(textResult.FragmentPointIDs))
	}

	jsonResult, err := eng.Pipeline.Ingest(ctx, ingestion.Request{
		Payload:       []byte(`{"service":{"name":"hybridstore","description":"Unifies key-value, vector, and relational storage into Points and Segments"}}`),
		ResourceID:    "demo-doc-json",
		ContentType:   "json",
		SingularityID: &singularity,
	})
	if err != nil {
		log.Printf("demo json ingestion failed: %v", err)
	} else {
		log.Printf("ingested json resource %d with %d fragments", jsonResult.ResourcePointID, len(jsonResult.FragmentPointIDs))
	}

	// Fill one cache-core key through the synchronous Put path.
	eng.Cache.Put("demo:warmup", 50*time.Millisecond, func() (any, error) {
		return "warm", nil
	}, false)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleSearch(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			http.Error(w, "q is required", http.StatusBadRequest)
			return
		}

		hits, err := eng.Search(r.Context(), hybridstore.SearchRequest{Query: query, Limit: 10})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(hits)
	}
}
