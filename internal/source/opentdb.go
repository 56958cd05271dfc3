package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
)

// DefaultBaseURL is the Open Trivia Database endpoint.
const DefaultBaseURL = "https://opentdb.com/api.php"

// OpenTDBClient fetches multiple-choice questions from the Open Trivia
// Database. Each question's options are shuffled once here, at fetch
// time, and stay fixed for the life of the session.
type OpenTDBClient struct {
	baseURL    string
	httpClient *http.Client

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewOpenTDBClient(baseURL string, timeout time.Duration) *OpenTDBClient {
	return NewOpenTDBClientWithRand(baseURL, timeout, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewOpenTDBClientWithRand allows a deterministic shuffle in tests.
func NewOpenTDBClientWithRand(baseURL string, timeout time.Duration, rnd *rand.Rand) *OpenTDBClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenTDBClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		rnd:        rnd,
	}
}

type openTDBResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// Fetch requests count questions. A non-zero provider response code is
// treated the same as a network failure.
func (c *OpenTDBClient) Fetch(ctx context.Context, count int) ([]domain.Question, error) {
	params := url.Values{}
	params.Set("amount", strconv.Itoa(count))
	params.Set("type", "multiple")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trivia api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trivia api: unexpected status %d", resp.StatusCode)
	}

	var payload openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("trivia api: decode: %w", err)
	}
	// 0 is the provider's only success code; anything else (no results,
	// invalid parameter, token errors) follows the same retry path as a
	// network error.
	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("trivia api: response code %d: %w", payload.ResponseCode, domain.ErrQuestionsUnavailable)
	}
	if len(payload.Results) == 0 {
		return nil, domain.ErrQuestionsUnavailable
	}

	questions := make([]domain.Question, 0, len(payload.Results))
	for _, result := range payload.Results {
		options := append([]string{result.CorrectAnswer}, result.IncorrectAnswers...)
		c.shuffle(options)
		questions = append(questions, domain.Question{
			Prompt:        result.Question,
			CorrectAnswer: result.CorrectAnswer,
			Options:       options,
		})
	}
	return questions, nil
}

func (c *OpenTDBClient) shuffle(options []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
}
