// Package router decides how a transcript gets answered: local skills
// first, then the response cache, then model inference with retrieved
// context, and a fixed fallback when everything else fails.
package router

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/mfalcao/phantasma/internal/log"
	"github.com/mfalcao/phantasma/pkg/inference"
	"github.com/mfalcao/phantasma/pkg/skill"
)

// Source says which stage produced an outcome.
type Source string

const (
	SourceNone     Source = ""
	SourceSkill    Source = "skill"
	SourceCache    Source = "cache"
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Outcome is the router's verdict for one transcript.
type Outcome struct {
	// Text is the spoken answer. Empty means nothing to say.
	Text string
	// Source identifies the stage that answered.
	Source Source
	// SkillName is set when Source is SourceSkill.
	SkillName string
	// CacheAudio hints that the synthesized audio for Text is worth
	// keeping on disk, true for phrases that repeat verbatim.
	CacheAudio bool
	// ForceSpeak bypasses the speaking-state suppression.
	ForceSpeak bool
	// Final suppresses any further output for the session.
	Final bool
}

// CacheStore is the response cache surface the router needs.
type CacheStore interface {
	Get(prompt string) (string, bool)
	Put(prompt, response string) error
}

// Retriever pulls personal memories for prompt context.
type Retriever interface {
	Retrieve(prompt string, limit int) string
}

// Searcher pulls web context for a prompt.
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// Config wires a Router.
type Config struct {
	// Skills are consulted in order, subject to off-intent reordering.
	Skills []skill.Skill
	// Cache is consulted after the skills. Optional.
	Cache CacheStore
	// Memories feeds personal context into the model prompt. Optional.
	Memories Retriever
	// Search feeds web context into the model prompt. Optional.
	Search Searcher
	// LLM answers everything the skills and cache did not.
	LLM inference.Client
	// SystemPrompt is the persona for assembled prompts.
	SystemPrompt string
	// Fallback is spoken when inference fails entirely.
	Fallback string
}

// Router routes transcripts to an answer.
type Router struct {
	cfg    Config
	prompt *inference.Builder
	logger *slog.Logger
}

// New creates a router.
func New(cfg Config) *Router {
	if cfg.Fallback == "" {
		cfg.Fallback = inference.DefaultFallback
	}
	return &Router{
		cfg:    cfg,
		prompt: &inference.Builder{SystemPrompt: cfg.SystemPrompt},
		logger: log.Component("router"),
	}
}

// Commands that ask for something to stop or turn off. When one appears
// in the transcript, skills whose triggers carry these words are tried
// first, so "para a música" reaches the music skill before a chatty one.
var offKeywords = []string{"desliga", "para", "apaga", "fecha", "recolhe", "stop", "cancelar"}

// Questions that ask for an opinion. A matching skill's answer becomes
// model context instead of the response, so the model can editorialize
// over the hard fact.
var opinionTriggers = []string{"o que achas", "o que te parece"}

// Route answers one transcript.
//
// isCurrent gates the side effects that must not happen for a superseded
// session, which here is the cache write. onThinking fires right before
// the slow inference path so the caller can give immediate feedback.
// Both may be nil.
func (r *Router) Route(ctx context.Context, prompt string, isCurrent func() bool, onThinking func()) Outcome {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Outcome{}
	}
	lower := strings.ToLower(prompt)

	isOpinion := false
	for _, t := range opinionTriggers {
		if strings.HasPrefix(lower, t) {
			isOpinion = true
			break
		}
	}

	skillFact := ""

	for _, s := range r.orderedSkills(lower) {
		if !skill.Matches(lower, s.Triggers(), s.Mode()) {
			continue
		}

		res := r.safeHandle(s, lower, prompt)
		switch res.Kind {
		case skill.NoMatch:
			continue

		case skill.Supplemental:
			if res.Text != "" {
				skillFact = "Facto apurado localmente: " + res.Text
			}
			continue

		case skill.Answer, skill.AnswerFinal:
			if res.Text == "" {
				continue
			}
			if isOpinion {
				r.logger.Debug("skill provided opinion context", "skill", s.Name())
				skillFact = "Facto apurado localmente: " + res.Text
				break
			}
			r.logger.Info("skill answered", "skill", s.Name())
			return Outcome{
				Text:       res.Text,
				Source:     SourceSkill,
				SkillName:  s.Name(),
				ForceSpeak: res.ForceSpeak,
				Final:      res.Kind == skill.AnswerFinal,
			}
		}
		if isOpinion && skillFact != "" {
			break
		}
	}

	if r.cfg.Cache != nil {
		if cached, ok := r.cfg.Cache.Get(prompt); ok {
			r.logger.Info("cache answered")
			return Outcome{Text: cached, Source: SourceCache, CacheAudio: true}
		}
	}

	if onThinking != nil {
		onThinking()
	}

	memories := ""
	if r.cfg.Memories != nil {
		memories = inference.Sanitize(r.cfg.Memories.Retrieve(prompt, 0))
	}
	// A local fact already settles the question, no need to hit the web.
	web := ""
	if skillFact == "" && r.cfg.Search != nil {
		web = inference.Sanitize(r.cfg.Search.Search(ctx, prompt))
	}

	full := r.prompt.Build(prompt, memories, web, skillFact)
	answer, err := r.cfg.LLM.Generate(ctx, full)
	if err == nil && answer != "" {
		if r.cfg.Cache != nil && (isCurrent == nil || isCurrent()) {
			if err := r.cfg.Cache.Put(prompt, answer); err != nil {
				r.logger.Warn("cache write failed", "error", err)
			}
		}
		return Outcome{Text: answer, Source: SourceLLM}
	}
	if err != nil {
		r.logger.Warn("inference failed", "error", err)
	}

	return Outcome{Text: r.cfg.Fallback, Source: SourceFallback}
}

// orderedSkills returns the skills, with off-intent skills promoted when
// the transcript carries an off keyword. The sort is stable so the
// configured order breaks ties.
func (r *Router) orderedSkills(lower string) []skill.Skill {
	offIntent := false
	for _, k := range offKeywords {
		if strings.Contains(lower, k) {
			offIntent = true
			break
		}
	}
	if !offIntent {
		return r.cfg.Skills
	}

	priority := func(s skill.Skill) int {
		for _, trig := range s.Triggers() {
			for _, k := range offKeywords {
				if strings.Contains(trig, k) {
					return 1
				}
			}
		}
		return 0
	}

	ordered := append([]skill.Skill(nil), r.cfg.Skills...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return priority(ordered[i]) > priority(ordered[j])
	})
	return ordered
}

// safeHandle shields the router from a panicking skill; a crash inside
// a handler downgrades to no match.
func (r *Router) safeHandle(s skill.Skill, lower, original string) (res skill.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("skill panicked", "skill", s.Name(), "panic", rec)
			res = skill.None()
		}
	}()
	return s.Handle(lower, original)
}
