// Package sqlgen generates SQL from natural language questions and validates
// every candidate before it is allowed anywhere near the database.
package sqlgen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb-ai/askdb-engine/pkg/apperrors"
	"github.com/askdb-ai/askdb-engine/pkg/llm"
	"github.com/askdb-ai/askdb-engine/pkg/models"
	sqlcheck "github.com/askdb-ai/askdb-engine/pkg/sql"
)

var (
	sqlTagPattern   = regexp.MustCompile(`(?s)<sql>(.*?)</sql>`)
	sqlFencePattern = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")
)

// Config tunes generation and the validation limits.
type Config struct {
	MaxSQLLength     int     // reject statements longer than this many bytes
	MaxNestingDepth  int     // reject statements nested deeper than this
	MaxContextLength int     // cap in bytes on rendered schema context in prompts
	MaxRetries       int     // validation-feedback retries per request
	Temperature      float64 // sampling temperature for generation
}

// DefaultConfig returns the production validation limits.
func DefaultConfig() Config {
	return Config{
		MaxSQLLength:     5000,
		MaxNestingDepth:  5,
		MaxContextLength: 8000,
		MaxRetries:       1,
		Temperature:      0,
	}
}

// Generator produces validated SQL from questions and schema context.
type Generator struct {
	chat   llm.ChatClient
	cfg    Config
	logger *zap.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(chat llm.ChatClient, cfg Config, logger *zap.Logger) *Generator {
	if cfg.MaxSQLLength <= 0 {
		cfg.MaxSQLLength = 5000
	}
	if cfg.MaxNestingDepth <= 0 {
		cfg.MaxNestingDepth = 5
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = 8000
	}
	return &Generator{chat: chat, cfg: cfg, logger: logger}
}

// Generate asks the model for SQL and validates the result. A rejected
// statement is retried once with the rejection reason folded into the
// prompt; if the retry is also rejected the request fails with
// GenerationRejected carrying the last reason.
func (g *Generator) Generate(ctx context.Context, question string, fragments []models.SchemaFragment) (*models.GeneratedQuery, error) {
	prompt := buildGeneratePrompt(question, fragments, g.cfg.MaxContextLength)

	var lastSQL, lastReason string
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			prompt = buildRetryPrompt(question, fragments, g.cfg.MaxContextLength, lastSQL, lastReason)
		}

		response, err := g.chat.GenerateResponse(ctx, prompt, sqlSystemMessage, g.cfg.Temperature)
		if err != nil {
			return nil, apperrors.New(apperrors.KindInternal,
				"SQL generation provider failed", llm.IsRetryable(err), err)
		}

		candidate := ExtractSQL(response)
		if candidate == "" {
			lastSQL, lastReason = "", "the response contained no SQL statement"
			g.logger.Debug("generation attempt produced no SQL", zap.Int("attempt", attempt))
			continue
		}

		normalized, reason := g.validate(candidate, fragments)
		if reason == "" {
			g.logger.Info("SQL generated",
				zap.Int("attempt", attempt),
				zap.Int("fragments", len(fragments)),
				zap.String("model", g.chat.GetModel()))
			return &models.GeneratedQuery{
				SQL:       normalized,
				Fragments: fragments,
				Verdict:   models.VerdictAccepted,
			}, nil
		}

		lastSQL, lastReason = candidate, reason
		g.logger.Warn("generated SQL rejected",
			zap.Int("attempt", attempt),
			zap.String("reason", reason))
	}

	return &models.GeneratedQuery{
			SQL:       lastSQL,
			Fragments: fragments,
			Verdict:   models.VerdictRejected,
			Reason:    lastReason,
		}, apperrors.New(apperrors.KindGenerationRejected,
			fmt.Sprintf("could not generate valid SQL: %s", lastReason), false, nil)
}

// Repair asks the model to fix a statement the database rejected. It runs a
// single attempt with the database error as feedback; the result goes
// through the same validation chain as Generate.
func (g *Generator) Repair(ctx context.Context, question string, fragments []models.SchemaFragment, failedSQL, dbError string) (*models.GeneratedQuery, error) {
	prompt := buildRepairPrompt(question, fragments, g.cfg.MaxContextLength, failedSQL, dbError)

	response, err := g.chat.GenerateResponse(ctx, prompt, sqlSystemMessage, g.cfg.Temperature)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInternal,
			"SQL generation provider failed", llm.IsRetryable(err), err)
	}

	candidate := ExtractSQL(response)
	if candidate == "" {
		return nil, apperrors.New(apperrors.KindGenerationRejected,
			"could not generate valid SQL: the response contained no SQL statement", false, nil)
	}

	normalized, reason := g.validate(candidate, fragments)
	if reason != "" {
		return &models.GeneratedQuery{
				SQL:       candidate,
				Fragments: fragments,
				Verdict:   models.VerdictRejected,
				Reason:    reason,
			}, apperrors.New(apperrors.KindGenerationRejected,
				fmt.Sprintf("could not generate valid SQL: %s", reason), false, nil)
	}

	return &models.GeneratedQuery{
		SQL:       normalized,
		Fragments: fragments,
		Verdict:   models.VerdictAccepted,
	}, nil
}

// validate runs the full validation chain and returns the normalized SQL
// and an empty reason on acceptance, or the rejection reason.
func (g *Generator) validate(candidate string, fragments []models.SchemaFragment) (string, string) {
	if len(candidate) > g.cfg.MaxSQLLength {
		return "", fmt.Sprintf("statement exceeds the %d character limit", g.cfg.MaxSQLLength)
	}

	result := sqlcheck.ValidateAndNormalize(candidate)
	if result.Error != nil {
		return "", result.Error.Error()
	}
	normalized := result.NormalizedSQL

	if _, err := sqlcheck.RequireSelect(normalized); err != nil {
		return "", err.Error()
	}

	if depth := sqlcheck.MaxNestingDepth(normalized); depth > g.cfg.MaxNestingDepth {
		return "", fmt.Sprintf("statement nesting depth %d exceeds the limit of %d", depth, g.cfg.MaxNestingDepth)
	}

	if unknown := sqlcheck.CheckIdentifiers(normalized, AllowedIdentifiers(fragments)); len(unknown) > 0 {
		return "", fmt.Sprintf("statement references identifiers not present in the schema: %s",
			strings.Join(unknown, ", "))
	}

	if findings := sqlcheck.ScreenLiterals(normalized); len(findings) > 0 {
		return "", fmt.Sprintf("string literal %q matches a SQL injection pattern", findings[0].Literal)
	}

	return normalized, ""
}

// ExtractSQL pulls the SQL statement out of a model response. The <sql> tag
// is the contract; a fenced code block is accepted as a fallback.
func ExtractSQL(response string) string {
	if m := sqlTagPattern.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := sqlFencePattern.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// fragmentColumnPattern matches the "- name (type, ...)" column lines of a
// table fragment description.
var fragmentColumnPattern = regexp.MustCompile(`(?m)^- (\w+) \(`)

// AllowedIdentifiers collects every table and column name the retrieved
// fragments describe. This is the allow-list generated SQL is checked
// against.
func AllowedIdentifiers(fragments []models.SchemaFragment) []string {
	seen := make(map[string]struct{})
	var allowed []string
	add := func(name string) {
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		allowed = append(allowed, name)
	}

	for _, f := range fragments {
		add(f.Table)
		add(f.Column)
		for _, m := range fragmentColumnPattern.FindAllStringSubmatch(f.Description, -1) {
			add(m[1])
		}
	}
	return allowed
}
