package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HeroAPI is a typed client for the read-only hero GraphQL endpoint.
type HeroAPI struct {
	url      string
	pageSize int
	client   *http.Client
	logger   zerolog.Logger
}

// NewHeroAPI creates a hero API client.
func NewHeroAPI(url string, pageSize int, timeout time.Duration, logger zerolog.Logger) *HeroAPI {
	if pageSize <= 0 {
		pageSize = 200
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HeroAPI{
		url:      url,
		pageSize: pageSize,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logger.With().Str("component", "hero_api").Logger(),
	}
}

const heroFields = `id owner { id } statGenes visualGenes generation level stamina
	staminaFullAt gardening profession currentQuest`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// rawHero matches the API's wire shape; ids arrive as strings.
type rawHero struct {
	ID    string `json:"id"`
	Owner struct {
		ID string `json:"id"`
	} `json:"owner"`
	StatGenes    string `json:"statGenes"`
	VisualGenes  string `json:"visualGenes"`
	Generation   int    `json:"generation"`
	Level        int    `json:"level"`
	Stamina      int    `json:"stamina"`
	StaminaFull  int    `json:"staminaFullAt"`
	Gardening    int    `json:"gardening"`
	Profession   string `json:"profession"`
	CurrentQuest string `json:"currentQuest"`
	Pet          *Pet   `json:"equippedPet"`
}

func (h *HeroAPI) query(ctx context.Context, query string, variables map[string]any, dst any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	var lastErr error
	err = withRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("hero api request failed: %w", err)
			return lastErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			lastErr = fmt.Errorf("hero api returned status %d: %s", resp.StatusCode, string(respBody))
			return lastErr
		}

		var envelope struct {
			Data   json.RawMessage `json:"data"`
			Errors []graphqlError  `json:"errors"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			lastErr = fmt.Errorf("decode hero api response: %w", err)
			return lastErr
		}
		if len(envelope.Errors) > 0 {
			// Schema-level errors are permanent; report without retry by
			// wrapping them distinctly.
			return &permanentError{fmt.Errorf("hero api error: %s", envelope.Errors[0].Message)}
		}
		return json.Unmarshal(envelope.Data, dst)
	})
	return err
}

// permanentError short-circuits withRetry for upstream responses that will
// not change on retry.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// GetHeroByID fetches one hero.
func (h *HeroAPI) GetHeroByID(ctx context.Context, id int64) (*Hero, error) {
	var data struct {
		Hero *rawHero `json:"hero"`
	}
	q := fmt.Sprintf(`query($id: ID!) { hero(id: $id) { %s equippedPet { id professionBonus } } }`, heroFields)
	if err := h.query(ctx, q, map[string]any{"id": strconv.FormatInt(id, 10)}, &data); err != nil {
		return nil, err
	}
	if data.Hero == nil {
		return nil, fmt.Errorf("hero %d not found", id)
	}
	return data.Hero.toHero()
}

// GetAllHeroesByOwner pages through the owner's heroes 200 at a time until a
// short page, deduplicating by hero ID across pages (the API can repeat
// boundary rows between pages).
func (h *HeroAPI) GetAllHeroesByOwner(ctx context.Context, owner string) ([]Hero, error) {
	owner = strings.ToLower(owner)
	seen := make(map[int64]struct{})
	var heroes []Hero

	q := fmt.Sprintf(`query($owner: String!, $first: Int!, $skip: Int!) {
		heroes(where: { owner: $owner }, first: $first, skip: $skip, orderBy: id) {
			%s equippedPet { id professionBonus }
		}
	}`, heroFields)

	for skip := 0; ; skip += h.pageSize {
		var data struct {
			Heroes []rawHero `json:"heroes"`
		}
		vars := map[string]any{"owner": owner, "first": h.pageSize, "skip": skip}
		if err := h.query(ctx, q, vars, &data); err != nil {
			return nil, err
		}

		for _, raw := range data.Heroes {
			hero, err := raw.toHero()
			if err != nil {
				h.logger.Warn().Err(err).Str("hero", raw.ID).Msg("skipping malformed hero row")
				continue
			}
			if _, dup := seen[hero.ID]; dup {
				continue
			}
			seen[hero.ID] = struct{}{}
			heroes = append(heroes, *hero)
		}

		if len(data.Heroes) < h.pageSize {
			break
		}
	}
	return heroes, nil
}

func (r *rawHero) toHero() (*Hero, error) {
	id, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse hero id %q: %w", r.ID, err)
	}
	return &Hero{
		ID:           id,
		Owner:        strings.ToLower(r.Owner.ID),
		StatGenes:    r.StatGenes,
		VisualGenes:  r.VisualGenes,
		Generation:   r.Generation,
		Level:        r.Level,
		Stamina:      r.Stamina,
		StaminaFull:  r.StaminaFull,
		Gardening:    r.Gardening,
		Profession:   r.Profession,
		CurrentQuest: r.CurrentQuest,
		Pet:          r.Pet,
	}, nil
}
