package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/svc-virt/predicate-engine/internal/config"
	"github.com/svc-virt/predicate-engine/internal/metrics"
	"github.com/svc-virt/predicate-engine/internal/models"
	"github.com/svc-virt/predicate-engine/internal/predicate"
	"github.com/svc-virt/predicate-engine/pkg/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run":
			runRun()
			return
		case "serve":
			runServe()
			return
		case "version":
			fmt.Printf("predicateeval %s (predicate spec %s)\n", version.Version, version.SpecVersion)
			return
		}
	}
	flag.Usage()
	os.Exit(2)
}

// runRun implements `predicateeval run --case <file>`: evaluate every
// case in the file and report pass/fail against each case's expected
// outcome, if given.
func runRun() {
	runFlags := flag.NewFlagSet("run", flag.ExitOnError)
	caseFile := runFlags.String("case", "", "path to a case file (single case or {cases: [...]})")
	runFlags.Parse(os.Args[2:])

	if *caseFile == "" {
		log.Fatal("run: -case is required")
	}

	cf, err := config.LoadFile(*caseFile)
	if err != nil {
		log.Fatalf("failed to load case file: %v", err)
	}

	runID := uuid.NewString()
	log.Printf("run %s: evaluating %d case(s) from %s", runID, len(cf.Cases), *caseFile)

	failures := 0
	for _, c := range cf.Cases {
		start := time.Now()
		result, err := predicate.Eval(c.Predicate, evalContext(c))
		elapsed := time.Since(start).Seconds()

		if err != nil {
			recordOutcome("error", elapsed, err)
			fmt.Printf("FAIL %s: %v\n", caseLabel(c), err)
			failures++
			continue
		}

		outcome := "no_match"
		if result {
			outcome = "match"
		}
		metrics.RecordEvaluation(outcome, elapsed)

		if c.Expect != nil && *c.Expect != result {
			fmt.Printf("FAIL %s: expected %v, got %v\n", caseLabel(c), *c.Expect, result)
			failures++
			continue
		}
		fmt.Printf("ok   %s: %v\n", caseLabel(c), result)
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func caseLabel(c config.Case) string {
	if c.Name != "" {
		return c.Name
	}
	return "<unnamed>"
}

func recordOutcome(outcome string, elapsed float64, err error) {
	metrics.RecordEvaluation(outcome, elapsed)
	if _, ok := err.(*predicate.ValidationError); ok {
		metrics.RecordValidationError()
	}
	if _, ok := err.(*predicate.InjectionError); ok {
		metrics.RecordInjectionError()
	}
}

func evalContext(c config.Case) predicate.EvalContext {
	return predicate.EvalContext{
		Request:  c.Request,
		Encoding: c.Encoding,
	}
}

type evaluateRequest struct {
	Predicate *predicate.Predicate `json:"predicate"`
	Request   *models.Request      `json:"request"`
	Encoding  string               `json:"encoding,omitempty"`
}

type evaluateResponse struct {
	RequestID string `json:"requestId"`
	Match     bool   `json:"match"`
	Error     string `json:"error,omitempty"`
}

// runServe implements `predicateeval serve --port <n>`: a small HTTP
// server exposing POST /evaluate for ad hoc predicate testing and
// GET /metrics for Prometheus scraping.
func runServe() {
	serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
	port := serveFlags.Int("port", 2526, "the port to listen on")
	serveFlags.Parse(os.Args[2:])

	mux := http.NewServeMux()
	mux.HandleFunc("/evaluate", handleEvaluate)
	mux.HandleFunc("/capture", handleCapture)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: mux,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("predicateeval listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-done
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
	log.Println("server stopped")
}

func handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.NewString()

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Request == nil {
		req.Request = &models.Request{}
	}
	if req.Encoding == "" {
		req.Encoding = "utf8"
	}

	start := time.Now()
	match, err := predicate.Eval(req.Predicate, predicate.EvalContext{
		Request:  req.Request,
		Encoding: req.Encoding,
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		recordOutcome("error", elapsed, err)
		log.Printf("request %s: evaluation error: %v", requestID, err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(evaluateResponse{RequestID: requestID, Error: err.Error()})
		return
	}

	outcome := "no_match"
	if match {
		outcome = "match"
	}
	metrics.RecordEvaluation(outcome, elapsed)

	json.NewEncoder(w).Encode(evaluateResponse{RequestID: requestID, Match: match})
}

// handleCapture matches a predicate against the literal incoming HTTP
// request rather than a JSON-wrapped one: the request's own body,
// headers, query string and form are captured via
// models.NewRequestFromHTTP (so binary-body detection and form
// decoding actually run against live traffic, not just fixtures), and
// the predicate to test travels out-of-band in the X-Predicate header
// since the body is the payload under test, not an envelope.
func handleCapture(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	rawPredicate := r.Header.Get("X-Predicate")
	if rawPredicate == "" {
		http.Error(w, "X-Predicate header is required", http.StatusBadRequest)
		return
	}
	var p predicate.Predicate
	if err := json.Unmarshal([]byte(rawPredicate), &p); err != nil {
		http.Error(w, fmt.Sprintf("invalid X-Predicate header: %v", err), http.StatusBadRequest)
		return
	}

	captured, err := models.NewRequestFromHTTP(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to capture request: %v", err), http.StatusBadRequest)
		return
	}

	encoding := r.Header.Get("X-Encoding")
	if encoding == "" {
		encoding = "utf8"
	}

	start := time.Now()
	match, err := predicate.Eval(&p, predicate.EvalContext{Request: captured, Encoding: encoding})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		recordOutcome("error", elapsed, err)
		log.Printf("request %s: capture evaluation error: %v", requestID, err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(evaluateResponse{RequestID: requestID, Error: err.Error()})
		return
	}

	outcome := "no_match"
	if match {
		outcome = "match"
	}
	metrics.RecordEvaluation(outcome, elapsed)

	json.NewEncoder(w).Encode(evaluateResponse{RequestID: requestID, Match: match})
}
