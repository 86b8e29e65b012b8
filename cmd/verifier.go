package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/loke-sim/loke/sim"
)

// ErrVerifierRejected is returned for any non-success response other than
// a rate limit.
var ErrVerifierRejected = errors.New("verifier rejected submission")

// VerifierRequest is the wire shape of one submission.
type VerifierRequest struct {
	MapName    string                      `json:"MapName"`
	Proposals  []VerifierProposal          `json:"Proposals"`
	Iterations []map[string]VerifierAction `json:"Iterations"` // one entry per game month
}

// VerifierProposal carries the terms offered to one customer.
type VerifierProposal struct {
	CustomerName        string  `json:"CustomerName"`
	MonthsToPayBackLoan int     `json:"MonthsToPayBackLoan"`
	YearlyInterestRate  float64 `json:"YearlyInterestRate"`
}

// VerifierAction is one customer's action in one month.
type VerifierAction struct {
	Type  string `json:"Type"`  // "Skip" or "Award"
	Award string `json:"Award"` // "None" when skipping
}

// NewVerifierRequest converts a submission into its wire shape.
func NewVerifierRequest(g *sim.GameData, sub *sim.Submission) (*VerifierRequest, error) {
	req := &VerifierRequest{
		MapName:    g.Name,
		Proposals:  make([]VerifierProposal, 0, len(sub.Proposals)),
		Iterations: make([]map[string]VerifierAction, g.GameLength),
	}
	for month := range req.Iterations {
		req.Iterations[month] = make(map[string]VerifierAction, len(sub.Proposals))
	}
	for _, prop := range sub.Proposals {
		if len(prop.Calendar) != g.GameLength {
			return nil, fmt.Errorf("customer %q: %d actions, want %d", prop.Customer, len(prop.Calendar), g.GameLength)
		}
		req.Proposals = append(req.Proposals, VerifierProposal{
			CustomerName:        prop.Customer,
			MonthsToPayBackLoan: prop.Terms.Duration,
			YearlyInterestRate:  prop.Terms.Rate,
		})
		for month, id := range prop.Calendar {
			action := VerifierAction{Type: "Skip", Award: "None"}
			if id != sim.NoAward {
				a := g.Awards.Get(id)
				if a == nil {
					return nil, fmt.Errorf("customer %q month %d: unknown award id %d", prop.Customer, month, id)
				}
				action = VerifierAction{Type: "Award", Award: a.Name}
			}
			req.Iterations[month][prop.Customer] = action
		}
	}
	return req, nil
}

// VerifierClient submits to the remote judge, pacing every attempt through
// a shared Pacer and retrying rate-limited attempts.
type VerifierClient struct {
	endpoint   string
	apiKey     string
	pacer      *Pacer
	httpClient *http.Client
	calls      int
}

// NewVerifierClient creates a client for endpoint.
func NewVerifierClient(endpoint, apiKey string, pacer *Pacer) *VerifierClient {
	return &VerifierClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		pacer:      pacer,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Calls returns the number of Evaluate calls made so far.
func (c *VerifierClient) Calls() int { return c.calls }

// Evaluate submits sub and returns the judge's score.
func (c *VerifierClient) Evaluate(ctx context.Context, g *sim.GameData, sub *sim.Submission) (sim.Score, error) {
	req, err := NewVerifierRequest(g, sub)
	if err != nil {
		return sim.Score{}, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return sim.Score{}, fmt.Errorf("marshal request: %w", err)
	}
	c.calls++

	for attempt := 1; ; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return sim.Score{}, err
		}
		status, data, err := c.post(ctx, body)
		if err != nil {
			return sim.Score{}, err
		}
		switch {
		case status == http.StatusTooManyRequests:
			logrus.Warnf("Verifier rate limited (attempt %d), retrying", attempt)
			continue
		case status < 200 || status > 299:
			return sim.Score{}, fmt.Errorf("%w: HTTP %d: %s", ErrVerifierRejected, status, strings.TrimSpace(string(data)))
		}
		return parseScore(data)
	}
}

func (c *VerifierClient) post(ctx context.Context, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("request creation error: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP error: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read error: %w", err)
	}
	return resp.StatusCode, data, nil
}

func parseScore(data []byte) (sim.Score, error) {
	if !gjson.ValidBytes(data) {
		return sim.Score{}, fmt.Errorf("verifier response is not JSON: %.200s", data)
	}
	score := gjson.GetBytes(data, "score")
	if !score.Exists() {
		return sim.Score{}, fmt.Errorf("verifier response has no score: %.200s", data)
	}
	return sim.Score{
		MapName:             score.Get("mapName").String(),
		EnvironmentalImpact: score.Get("environmentalImpact").Float(),
		HappinessScore:      score.Get("happinessScore").Float(),
		TotalProfit:         score.Get("totalProfit").Float(),
		TotalScore:          score.Get("totalScore").Float(),
	}, nil
}

// ReadAPIKey reads the verifier key from path, trimming whitespace.
func ReadAPIKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("API key file %s is empty", path)
	}
	return key, nil
}
