package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"veoqueue/internal/batch"
	"veoqueue/internal/middleware"
)

func main() {
	var (
		apiFlag    string
		tokenFlag  string
		secretFlag string
		startFlag  bool
	)
	flag.StringVar(&apiFlag, "api", "http://localhost:8080", "veoqueue API base URL")
	flag.StringVar(&tokenFlag, "token", "", "bearer token for the API")
	flag.StringVar(&secretFlag, "jwt-secret", "", "sign a short-lived token with this secret (fallbacks to JWT_SECRET)")
	flag.BoolVar(&startFlag, "start", false, "start the scheduler after queueing")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: veobatch [flags] manifest.yaml\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	params, err := batch.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid manifest: %v\n", err)
		os.Exit(1)
	}

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		secret := strings.TrimSpace(secretFlag)
		if secret == "" {
			secret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
		}
		if secret != "" {
			token, err = middleware.SignJWT(secret, "veobatch", "", 5*time.Minute)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
				os.Exit(1)
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c := &apiClient{base: strings.TrimRight(apiFlag, "/"), token: token, http: &http.Client{Timeout: time.Minute}}

	var queued struct {
		Jobs []struct {
			ID     string `json:"id"`
			Prompt string `json:"prompt"`
		} `json:"jobs"`
	}
	if err := c.post(ctx, "/v1/jobs/batch", batch.NewRequest(params), &queued); err != nil {
		fmt.Fprintf(os.Stderr, "failed to queue batch: %v\n", err)
		os.Exit(1)
	}
	for _, job := range queued.Jobs {
		fmt.Printf("%s\t%s\n", job.ID, job.Prompt)
	}
	fmt.Printf("queued %d jobs\n", len(queued.Jobs))

	if startFlag {
		if err := c.post(ctx, "/v1/scheduler/start", nil, nil); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start scheduler: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("scheduler started")
	}
}

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func (c *apiClient) post(ctx context.Context, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr middleware.ErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s (%s)", resp.Status, apiErr.Message, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
