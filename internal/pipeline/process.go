package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"preciobot/internal"
	"preciobot/internal/assist"
	"preciobot/internal/catalog"
	"preciobot/internal/config"
	"preciobot/internal/session"
	"preciobot/internal/util"
)

type ReplyKind string

const (
	ReplyGreeting           ReplyKind = "greeting"
	ReplyParseFailure       ReplyKind = "parse_failure"
	ReplyCatalogUnavailable ReplyKind = "catalog_unavailable"
	ReplyNotFound           ReplyKind = "not_found"
	ReplyAmbiguous          ReplyKind = "ambiguous"
	ReplyResolved           ReplyKind = "resolved"
	ReplyPlanPrompt         ReplyKind = "plan_prompt"
)

type Reply struct {
	Kind    ReplyKind
	Text    string
	TraceID string
	Plan    internal.FinancingPlan
	Query   string
	// Records holds the resolved record, or the offered candidates.
	Records []internal.CatalogRecord
}

// Catalog is the sheet provider the service reads from.
type Catalog interface {
	Index(ctx context.Context, sheet string) (*catalog.Index, error)
	StandardSheet() string
	RecompraSheet() string
}

type LookupLog interface {
	InsertLookup(row internal.LookupRow) (int64, error)
}

// Resolution is the result of routing a parsed query to a sheet and matching
// it there.
type Resolution struct {
	Parsed  ParsedQuery
	Sheet   string
	Outcome internal.MatchOutcome
	// RecompraOnly marks a hit found on the trade-in sheet after the
	// requested plan's sheet had nothing.
	RecompraOnly bool
}

type Service struct {
	catalog  Catalog
	sessions session.Store
	format   Formatter
	log      zerolog.Logger

	assistant assist.Assistant
	enhance   bool
	fallback  bool
	lookups   LookupLog
}

func NewService(cfg config.Config, cat Catalog, sessions session.Store, log zerolog.Logger) *Service {
	return &Service{
		catalog:  cat,
		sessions: sessions,
		format:   Formatter{ContadoExtra: cfg.ContadoExtra},
		log:      log.With().Str("component", "conversation").Logger(),
	}
}

// WithAssistant enables model-backed extraction (fallback) and reply polishing
// (enhance).
func (s *Service) WithAssistant(a assist.Assistant, enhance, fallback bool) *Service {
	s.assistant = a
	s.enhance = enhance
	s.fallback = fallback
	return s
}

func (s *Service) WithLookupLog(l LookupLog) *Service {
	s.lookups = l
	return s
}

// Handle answers one inbound message from identity.
func (s *Service) Handle(ctx context.Context, identity, text string) Reply {
	start := time.Now()
	trace := uuid.NewString()

	reply := s.handle(ctx, identity, text)
	reply.TraceID = trace

	device := ""
	if reply.Kind == ReplyResolved && len(reply.Records) > 0 {
		device = reply.Records[0].Device
	}
	s.log.Info().
		Str("trace", trace).
		Str("identity", identity).
		Str("plan", string(reply.Plan)).
		Str("query", reply.Query).
		Str("outcome", string(reply.Kind)).
		Int("candidates", len(reply.Records)).
		Dur("took", time.Since(start)).
		Msg("lookup")

	if s.lookups != nil && reply.Kind != ReplyGreeting {
		if _, err := s.lookups.InsertLookup(internal.LookupRow{
			TraceID:    trace,
			Identity:   identity,
			Message:    text,
			Plan:       string(reply.Plan),
			Query:      reply.Query,
			Outcome:    string(reply.Kind),
			Candidates: len(reply.Records),
			Device:     device,
		}); err != nil {
			s.log.Warn().Err(err).Str("trace", trace).Msg("lookup log write failed")
		}
	}
	return reply
}

func (s *Service) handle(ctx context.Context, identity, text string) Reply {
	if _, numeric := session.ChoiceKey(text); numeric {
		sel, ok, err := s.sessions.Resolve(ctx, identity, text)
		if err != nil {
			s.log.Error().Err(err).Str("identity", identity).Msg("session resolve failed")
		}
		if ok {
			return s.resolved(ctx, text, sel.Plan, sel.Record)
		}
		// An out-of-range number keeps the offer so the user can pick again.
		return s.query(ctx, identity, text)
	}

	reply := s.query(ctx, identity, text)
	if reply.Kind != ReplyAmbiguous {
		// Only the message right after an offer may select from it.
		if err := s.sessions.Clear(ctx, identity); err != nil {
			s.log.Warn().Err(err).Str("identity", identity).Msg("session clear failed")
		}
	}
	return reply
}

func (s *Service) query(ctx context.Context, identity, text string) Reply {
	if IsGreeting(text) {
		return Reply{Kind: ReplyGreeting, Text: WelcomeText()}
	}

	parsed := ParseQuery(text)
	assisted := false
	if parsed.Query == "" {
		parsed, assisted = s.assisted(ctx, text, parsed)
		if parsed.Query == "" {
			return Reply{Kind: ReplyParseFailure, Text: UsageText(), Plan: parsed.Plan}
		}
	}

	res, err := s.Resolve(ctx, parsed)
	if err != nil {
		s.log.Error().Err(err).Str("query", parsed.Query).Msg("catalog lookup failed")
		return Reply{Kind: ReplyCatalogUnavailable, Text: CatalogUnavailableText(), Plan: parsed.Plan, Query: parsed.Query}
	}
	if res.Outcome.Kind == internal.NoMatch && !assisted {
		// The rules may have kept filler words; let the assistant reread it.
		if retry, ok := s.assisted(ctx, text, parsed); ok && retry.Query != parsed.Query {
			if again, err := s.Resolve(ctx, retry); err == nil && again.Outcome.Kind != internal.NoMatch {
				parsed, res = retry, again
			}
		}
	}

	switch res.Outcome.Kind {
	case internal.SingleMatch:
		record := *res.Outcome.Record()
		if res.RecompraOnly {
			return Reply{
				Kind:    ReplyResolved,
				Text:    s.format.RecompraOnly(parsed.Query, record),
				Plan:    internal.PlanRecompra,
				Query:   parsed.Query,
				Records: []internal.CatalogRecord{record},
			}
		}
		reply := s.resolved(ctx, text, parsed.Plan, record)
		reply.Query = parsed.Query
		return reply

	case internal.MultipleMatches:
		plan := parsed.Plan
		if res.RecompraOnly {
			plan = internal.PlanRecompra
		}
		pending, err := s.sessions.Offer(ctx, identity, plan, res.Outcome.Records)
		if err != nil {
			s.log.Error().Err(err).Str("identity", identity).Msg("session offer failed")
			pending = session.NewPending(plan, res.Outcome.Records, time.Now())
		}
		return Reply{
			Kind:    ReplyAmbiguous,
			Text:    CandidatesText(parsed.Query, pending),
			Plan:    plan,
			Query:   parsed.Query,
			Records: res.Outcome.Records,
		}

	default:
		return Reply{Kind: ReplyNotFound, Text: NotFoundText(parsed.Plan, parsed.Query), Plan: parsed.Plan, Query: parsed.Query}
	}
}

// assisted asks the assistant to read text when the fallback is enabled. It
// reports whether the assistant produced a device.
func (s *Service) assisted(ctx context.Context, text string, parsed ParsedQuery) (ParsedQuery, bool) {
	if !s.fallback || s.assistant == nil {
		return parsed, false
	}

	ext, err := s.assistant.ExtractQuery(ctx, text)
	if err != nil {
		s.log.Warn().Err(err).Msg("assistant extraction failed")
		return parsed, false
	}
	model := util.NormalizeModel(ext.Model)
	if model == "" {
		return parsed, false
	}
	parsed.Query = model
	if strings.TrimSpace(ext.Plan) != "" {
		parsed.Plan = CanonicalPlan(ext.Plan)
	}
	return parsed, true
}

// Resolve routes a parsed query to its sheet and matches it. Recompra queries
// read the trade-in sheet; everything else reads the standard sheet and,
// except for cash, falls back to the trade-in sheet when nothing matched.
func (s *Service) Resolve(ctx context.Context, parsed ParsedQuery) (Resolution, error) {
	sheet := s.catalog.StandardSheet()
	if parsed.Plan == internal.PlanRecompra {
		sheet = s.catalog.RecompraSheet()
	}

	idx, err := s.catalog.Index(ctx, sheet)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{Parsed: parsed, Sheet: sheet, Outcome: NewMatcher(idx).Match(parsed.Query)}
	if res.Outcome.Kind != internal.NoMatch || parsed.Plan == internal.PlanRecompra || parsed.Plan == internal.PlanContado {
		return res, nil
	}

	recompra, err := s.catalog.Index(ctx, s.catalog.RecompraSheet())
	if err != nil {
		s.log.Warn().Err(err).Msg("recompra fallback unavailable")
		return res, nil
	}
	if outcome := NewMatcher(recompra).Match(parsed.Query); outcome.Kind != internal.NoMatch {
		return Resolution{Parsed: parsed, Sheet: recompra.Sheet, Outcome: outcome, RecompraOnly: true}, nil
	}
	return res, nil
}

func (s *Service) resolved(ctx context.Context, message string, plan internal.FinancingPlan, record internal.CatalogRecord) Reply {
	if plan == internal.PlanUnspecified {
		return Reply{Kind: ReplyPlanPrompt, Text: PlanPromptText(record), Records: []internal.CatalogRecord{record}}
	}

	text := s.format.Price(plan, record)
	if s.enhance && s.assistant != nil {
		enhanced, err := s.assistant.Enhance(ctx, text, message, record)
		if err != nil {
			s.log.Warn().Err(err).Msg("assistant enhance failed")
		} else {
			text = enhanced
		}
	}
	return Reply{Kind: ReplyResolved, Text: text, Plan: plan, Records: []internal.CatalogRecord{record}}
}
