// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "dealerdesk/internal/common/errors"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/common/metrics"
	"dealerdesk/internal/common/observability"
	"dealerdesk/internal/completion"
	"dealerdesk/internal/inventory"
	"dealerdesk/internal/knowledge"
	"dealerdesk/internal/leads"
	"dealerdesk/internal/models"
	"dealerdesk/internal/session"
)

// Branch names the response path that produced a reply.
type Branch string

const (
	BranchFlagCompletion Branch = "flag_completion"
	BranchKnowledge      Branch = "knowledge"
	BranchInventory      Branch = "inventory"
	BranchCompletion     Branch = "completion"
	BranchFallback       Branch = "fallback"
)

const fallbackReply = "I'm having trouble right now. Please try again or call us at: 0300-1234567"

// Result is the outcome of one handled turn.
type Result struct {
	Reply        string              `json:"reply"`
	MatchedTopic string              `json:"matchedTopic,omitempty"`
	MatchedCars  []models.CarListing `json:"matchedCars,omitempty"`
	Lead         models.Lead         `json:"lead"`
	Branch       Branch              `json:"branch"`
	Degraded     bool                `json:"degraded,omitempty"`
}

// CatalogProvider supplies the current inventory snapshot.
type CatalogProvider interface {
	Snapshot() []models.CarListing
}

// LeadSink receives leads the moment they become qualified. Calls run
// on the turn's goroutine and must be quick; slow consumers should
// hand off internally.
type LeadSink interface {
	LeadQualified(ctx context.Context, sessionID string, lead models.Lead)
}

// TurnArchiver copies turns into durable analytics storage.
type TurnArchiver interface {
	Record(ctx context.Context, sessionID string, turn models.Turn) error
}

// Orchestrator routes each incoming message through a fixed priority
// chain: pending-flag completion, knowledge base, inventory search,
// then the completion provider. Lead extraction runs on every turn
// regardless of which branch answers.
type Orchestrator struct {
	store         session.Store
	matcher       *knowledge.Matcher
	searcher      *inventory.Searcher
	catalog       CatalogProvider
	ai            completion.Client
	leadSink      LeadSink
	archiver      TurnArchiver
	obs           *observability.Observability
	log           logger.Logger
	historyWindow int
}

type Option func(*Orchestrator)

// WithLeadSink wires a consumer for newly qualified leads.
func WithLeadSink(sink LeadSink) Option {
	return func(o *Orchestrator) { o.leadSink = sink }
}

// WithTurnArchive copies every appended turn into durable storage.
// Archival is best effort and never blocks or fails a reply.
func WithTurnArchive(archiver TurnArchiver) Option {
	return func(o *Orchestrator) { o.archiver = archiver }
}

// WithObservability wires the otel meter alongside the prometheus
// counters.
func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

// WithHistoryWindow overrides how many recent turns feed the prompt.
func WithHistoryWindow(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyWindow = n
		}
	}
}

func New(store session.Store, matcher *knowledge.Matcher, searcher *inventory.Searcher,
	catalog CatalogProvider, ai completion.Client, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		matcher:       matcher,
		searcher:      searcher,
		catalog:       catalog,
		ai:            ai,
		log:           log,
		historyWindow: 10,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// HandleMessage processes one customer message and returns the reply.
// A storage outage degrades the turn instead of failing it: the reply
// is still produced, nothing is persisted, and Result.Degraded is set.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, text string) (result Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("panic while handling turn", map[string]interface{}{
				"session_id": sessionID,
				"panic":      fmt.Sprintf("%v", r),
			})
			result = Result{Reply: fallbackReply + " " + o.matcher.Menu(), Branch: BranchFallback}
			err = nil
		}
		metrics.ChatTurnsTotal.WithLabelValues(string(result.Branch)).Inc()
		metrics.ChatTurnDuration.WithLabelValues(string(result.Branch)).Observe(time.Since(start).Seconds())
		if o.obs != nil {
			o.obs.RecordTurn(ctx, string(result.Branch))
			o.obs.RecordTurnDuration(ctx, time.Since(start), string(result.Branch))
		}
	}()

	text = strings.TrimSpace(text)
	if sessionID == "" || text == "" {
		return Result{}, apperrors.ErrInvalidInput
	}

	log := o.log.WithFields(map[string]interface{}{"session_id": sessionID})

	sess, created, serr := o.store.GetOrCreate(ctx, sessionID)
	degraded := false
	if serr != nil && !apperrors.Is(serr, apperrors.ErrInvalidInput) {
		// Degraded mode: answer from an ephemeral session, persist nothing.
		log.WithError(serr).Warn("session store unavailable, degrading turn", nil)
		sess = &models.Session{ID: sessionID, Flags: map[string]bool{}}
		degraded = true
	} else if serr != nil {
		return Result{}, serr
	}
	if created {
		metrics.SessionsActive.Inc()
	}

	// Lead extraction runs on every turn, whatever branch replies.
	partial := leads.Extract(text)
	lead := sess.Lead
	wasQualified := lead.Qualified()
	if degraded {
		leads.Merge(&lead, partial)
	} else if !partial.Empty() {
		merged, _, merr := o.store.MergeLead(ctx, sessionID, partial)
		if merr != nil {
			log.WithError(merr).Warn("lead merge failed", nil)
			leads.Merge(&lead, partial)
		} else {
			lead = merged
		}
		countExtractedFields(partial)
	}
	if !wasQualified && lead.Qualified() && o.leadSink != nil {
		o.leadSink.LeadQualified(ctx, sessionID, lead)
	}

	catalog := o.catalog.Snapshot()
	reply, branch, topic, cars := o.route(ctx, sessionID, sess, lead, partial, catalog, text, degraded)

	if !degraded {
		userTurn := models.Turn{Role: models.RoleUser, Text: text}
		assistantTurn := models.Turn{
			Role:         models.RoleAssistant,
			Text:         reply,
			MatchedTopic: topic,
			MatchedCars:  carIDs(cars),
		}
		if aerr := o.store.AppendTurn(ctx, sessionID, userTurn); aerr != nil {
			log.WithError(aerr).Warn("failed to append user turn", nil)
			degraded = true
		} else if aerr := o.store.AppendTurn(ctx, sessionID, assistantTurn); aerr != nil {
			log.WithError(aerr).Warn("failed to append assistant turn", nil)
			degraded = true
		}
		if o.archiver != nil && !degraded {
			o.archive(sessionID, userTurn, assistantTurn)
		}
	}

	log.Info("turn handled", map[string]interface{}{
		"branch":   string(branch),
		"degraded": degraded,
	})
	return Result{
		Reply:        reply,
		MatchedTopic: topic,
		MatchedCars:  cars,
		Lead:         lead,
		Branch:       branch,
		Degraded:     degraded,
	}, nil
}

// archive copies the turn pair into analytics storage off the reply
// path.
func (o *Orchestrator) archive(sessionID string, turns ...models.Turn) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, turn := range turns {
			if err := o.archiver.Record(ctx, sessionID, turn); err != nil {
				o.log.WithError(err).Warn("turn archival failed", map[string]interface{}{
					"session_id": sessionID,
				})
				return
			}
		}
	}()
}

// route picks the response branch in fixed priority order.
func (o *Orchestrator) route(ctx context.Context, sessionID string, sess *models.Session,
	lead models.Lead, partial leads.Partial, catalog []models.CarListing,
	text string, degraded bool) (reply string, branch Branch, topic string, cars []models.CarListing) {

	// 1. A pending flag satisfied by this message wins outright.
	if reply, ok := o.completePendingFlag(ctx, sessionID, sess, partial, degraded); ok {
		return reply, BranchFlagCompletion, "", nil
	}

	// 2. Knowledge base. A confident hit answers without touching the
	// completion provider.
	if match, ok := o.matcher.Match(text); ok {
		return o.knowledgeReply(ctx, sessionID, lead, catalog, text, match, degraded), BranchKnowledge, match.TopicID, nil
	}

	// 3. Inventory search.
	if inventory.HasShoppingCues(text, catalog) {
		found := o.searcher.Search(text, catalog)
		if len(found) > 0 {
			if !degraded {
				for _, c := range found {
					if ierr := o.store.AddInterest(ctx, sessionID, c.Label()); ierr != nil {
						o.log.WithError(ierr).Warn("failed to record interest", map[string]interface{}{"session_id": sessionID})
						break
					}
				}
			}
			return o.inventoryReply(ctx, sessionID, lead, found, degraded), BranchInventory, "", found
		}
		if len(catalog) > 0 {
			if !degraded && lead.Budget == nil {
				if ferr := o.store.SetFlag(ctx, sessionID, models.FlagAwaitingBudget); ferr != nil {
					o.log.WithError(ferr).Warn("failed to set flag", map[string]interface{}{"session_id": sessionID})
				}
			}
			return "I couldn't find a match for that in our current stock. What's your budget? I can suggest some options.",
				BranchInventory, "", nil
		}
	}

	// 4. Completion provider, with a canned fallback on failure.
	history, herr := o.history(ctx, sessionID, degraded)
	if herr != nil {
		history = sess.LastTurns(o.historyWindow)
	}
	reply, cerr := o.ai.Complete(ctx, BuildPrompt(catalog, history, lead, text))
	if cerr != nil {
		kind := "unknown"
		if pe, ok := completion.AsProviderError(cerr); ok {
			kind = string(pe.Kind)
		}
		metrics.ProviderFailures.WithLabelValues(kind).Inc()
		o.log.WithError(cerr).Warn("completion provider failed", map[string]interface{}{
			"session_id": sessionID,
			"kind":       kind,
		})
		return fallbackReply + " " + o.matcher.Menu(), BranchFallback, "", nil
	}
	return reply, BranchCompletion, "", nil
}

// knowledgeReply builds the canned answer. When the question also
// carries shopping cues the matching stock is appended, and a lead
// without a phone number is asked for one.
func (o *Orchestrator) knowledgeReply(ctx context.Context, sessionID string, lead models.Lead,
	catalog []models.CarListing, text string, match knowledge.Match, degraded bool) string {

	reply := match.Answer
	if inventory.HasShoppingCues(text, catalog) {
		if found := o.searcher.Search(text, catalog); len(found) > 0 {
			reply += "\n\nThese might also interest you:\n" + listingLines(found)
		}
	}
	if lead.Phone == "" {
		reply += "\nWould you like to share a phone number so our team can follow up?"
		if !degraded {
			if err := o.store.SetFlag(ctx, sessionID, models.FlagAwaitingPhone); err != nil {
				o.log.WithError(err).Warn("failed to set flag", map[string]interface{}{"session_id": sessionID})
			}
		}
	}
	return reply
}

// completePendingFlag resolves awaiting_phone / awaiting_budget when
// this message supplies the missing piece.
func (o *Orchestrator) completePendingFlag(ctx context.Context, sessionID string,
	sess *models.Session, partial leads.Partial, degraded bool) (string, bool) {

	if sess.Flags[models.FlagAwaitingPhone] && partial.Phone != "" {
		if !degraded {
			if err := o.store.ClearFlag(ctx, sessionID, models.FlagAwaitingPhone); err != nil {
				o.log.WithError(err).Warn("failed to clear flag", map[string]interface{}{"session_id": sessionID})
			}
		}
		return "Thanks! Our team will reach out on " + partial.Phone + " shortly. Anything else I can help with?", true
	}

	if sess.Flags[models.FlagAwaitingBudget] && partial.Budget != nil {
		if !degraded {
			if err := o.store.ClearFlag(ctx, sessionID, models.FlagAwaitingBudget); err != nil {
				o.log.WithError(err).Warn("failed to clear flag", map[string]interface{}{"session_id": sessionID})
			}
		}
		catalog := o.catalog.Snapshot()
		found := o.searcher.Search(fmt.Sprintf("cars under %.0f", partial.Budget.Max), catalog)
		if len(found) > 0 {
			return "Great, here's what fits that budget:\n" + listingLines(found), true
		}
		return "Thanks! Nothing in stock fits that exact budget right now, but our team can source options. Want to leave a phone number?", true
	}

	return "", false
}

// inventoryReply lists the matches and, when we can't reach the
// customer yet, asks for a phone number and marks the session.
func (o *Orchestrator) inventoryReply(ctx context.Context, sessionID string,
	lead models.Lead, found []models.CarListing, degraded bool) string {

	reply := "Here's what we have matching that:\n" + listingLines(found)
	if lead.Phone == "" && lead.Email == "" {
		reply += "\nWould you like to share a phone number so our team can follow up?"
		if !degraded {
			if err := o.store.SetFlag(ctx, sessionID, models.FlagAwaitingPhone); err != nil {
				o.log.WithError(err).Warn("failed to set flag", map[string]interface{}{"session_id": sessionID})
			}
		}
	}
	return reply
}

func (o *Orchestrator) history(ctx context.Context, sessionID string, degraded bool) ([]models.Turn, error) {
	if degraded {
		return nil, nil
	}
	return o.store.History(ctx, sessionID, o.historyWindow)
}

func listingLines(cars []models.CarListing) string {
	var b strings.Builder
	for _, c := range cars {
		b.WriteString(fmt.Sprintf("- %s %s %d, PKR %.0f\n", c.Make, c.Model, c.Year, c.Price))
	}
	return strings.TrimRight(b.String(), "\n")
}

func carIDs(cars []models.CarListing) []string {
	if len(cars) == 0 {
		return nil
	}
	out := make([]string, len(cars))
	for i, c := range cars {
		out[i] = c.ID
	}
	return out
}

func countExtractedFields(p leads.Partial) {
	if p.Name != "" {
		metrics.LeadFieldsExtracted.WithLabelValues("name").Inc()
	}
	if p.Phone != "" {
		metrics.LeadFieldsExtracted.WithLabelValues("phone").Inc()
	}
	if p.Email != "" {
		metrics.LeadFieldsExtracted.WithLabelValues("email").Inc()
	}
	if p.Budget != nil {
		metrics.LeadFieldsExtracted.WithLabelValues("budget").Inc()
	}
}
