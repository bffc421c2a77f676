// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dealerdesk/internal/common/errors"
	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/completion"
	"dealerdesk/internal/inventory"
	"dealerdesk/internal/knowledge"
	"dealerdesk/internal/leads"
	"dealerdesk/internal/models"
	"dealerdesk/internal/session"
)

type fakeAI struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   string
	err     error
}

func (f *fakeAI) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type staticCatalog struct{ cars []models.CarListing }

func (s staticCatalog) Snapshot() []models.CarListing { return s.cars }

type recordingSink struct {
	mu    sync.Mutex
	leads []models.Lead
}

func (r *recordingSink) LeadQualified(_ context.Context, _ string, lead models.Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = append(r.leads, lead)
}

// failingStore simulates a storage outage on every call.
type failingStore struct{}

func (failingStore) GetOrCreate(context.Context, string) (*models.Session, bool, error) {
	return nil, false, apperrors.ErrStorageUnavailable
}
func (failingStore) Get(context.Context, string) (*models.Session, error) {
	return nil, apperrors.ErrStorageUnavailable
}
func (failingStore) AppendTurn(context.Context, string, models.Turn) error {
	return apperrors.ErrStorageUnavailable
}
func (failingStore) MergeLead(context.Context, string, leads.Partial) (models.Lead, bool, error) {
	return models.Lead{}, false, apperrors.ErrStorageUnavailable
}
func (failingStore) AddInterest(context.Context, string, string) error {
	return apperrors.ErrStorageUnavailable
}
func (failingStore) SetFlag(context.Context, string, string) error {
	return apperrors.ErrStorageUnavailable
}
func (failingStore) ClearFlag(context.Context, string, string) error {
	return apperrors.ErrStorageUnavailable
}
func (failingStore) HasFlag(context.Context, string, string) (bool, error) {
	return false, apperrors.ErrStorageUnavailable
}
func (failingStore) History(context.Context, string, int) ([]models.Turn, error) {
	return nil, apperrors.ErrStorageUnavailable
}

func testCars() []models.CarListing {
	return []models.CarListing{
		{ID: "car-1", Make: "Toyota", Model: "Corolla", Year: 2020, Price: 3500000, Available: true},
		{ID: "car-2", Make: "Honda", Model: "Civic", Year: 2019, Price: 3200000, Available: true},
		{ID: "car-3", Make: "Suzuki", Model: "Alto", Year: 2021, Price: 1800000, Available: true},
	}
}

func newTestOrchestrator(t *testing.T, ai completion.Client, opts ...Option) (*Orchestrator, session.Store) {
	t.Helper()
	store := session.NewMemoryStore()
	o := New(
		store,
		knowledge.NewDefaultMatcher(),
		inventory.NewSearcher(5),
		staticCatalog{cars: testCars()},
		ai,
		logger.NewTestLogger(t),
		opts...,
	)
	return o, store
}

func TestHandleMessage_KnowledgeBranchSkipsProvider(t *testing.T) {
	ai := &fakeAI{reply: "should not be used"}
	o, store := newTestOrchestrator(t, ai)

	result, err := o.HandleMessage(context.Background(), "s-1", "What's your warranty policy?")
	require.NoError(t, err)

	assert.Equal(t, BranchKnowledge, result.Branch)
	assert.Equal(t, "warranty", result.MatchedTopic)
	assert.NotEmpty(t, result.Reply)
	assert.Zero(t, ai.calls, "knowledge hits never call the provider")

	history, err := store.History(context.Background(), "s-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "warranty", history[1].MatchedTopic)
}

func TestHandleMessage_KnowledgeBranchNudges(t *testing.T) {
	ai := &fakeAI{reply: "unused"}
	o, store := newTestOrchestrator(t, ai)
	ctx := context.Background()

	result, err := o.HandleMessage(ctx, "s-1", "do you offer financing on the toyota corolla?")
	require.NoError(t, err)

	assert.Equal(t, BranchKnowledge, result.Branch)
	assert.Equal(t, "financing", result.MatchedTopic)
	assert.Contains(t, result.Reply, "financing options")
	assert.Contains(t, result.Reply, "Corolla", "shopping cues pull matching stock into the answer")
	assert.Contains(t, result.Reply, "phone number")
	assert.Zero(t, ai.calls)

	has, err := store.HasFlag(ctx, "s-1", models.FlagAwaitingPhone)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestHandleMessage_KnowledgeBranchSkipsNudgeWithPhone(t *testing.T) {
	ai := &fakeAI{reply: "unused"}
	o, store := newTestOrchestrator(t, ai)
	ctx := context.Background()

	_, _, err := store.GetOrCreate(ctx, "s-1")
	require.NoError(t, err)
	_, _, err = store.MergeLead(ctx, "s-1", leads.Partial{Phone: "03001234567"})
	require.NoError(t, err)

	result, err := o.HandleMessage(ctx, "s-1", "what warranty do you offer?")
	require.NoError(t, err)

	assert.Equal(t, BranchKnowledge, result.Branch)
	assert.NotContains(t, result.Reply, "phone number")

	has, err := store.HasFlag(ctx, "s-1", models.FlagAwaitingPhone)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestHandleMessage_InventoryBranch(t *testing.T) {
	ai := &fakeAI{reply: "unused"}
	o, store := newTestOrchestrator(t, ai)

	result, err := o.HandleMessage(context.Background(), "s-1", "do you have a toyota corolla?")
	require.NoError(t, err)

	assert.Equal(t, BranchInventory, result.Branch)
	require.NotEmpty(t, result.MatchedCars)
	assert.Equal(t, "car-1", result.MatchedCars[0].ID)
	assert.Contains(t, result.Reply, "Corolla")
	assert.Zero(t, ai.calls)

	// No contact info yet, so the turn asks for a phone number.
	assert.Contains(t, result.Reply, "phone number")
	has, err := store.HasFlag(context.Background(), "s-1", models.FlagAwaitingPhone)
	require.NoError(t, err)
	assert.True(t, has)
}

// interestFailingStore works except for interest notes.
type interestFailingStore struct{ session.Store }

func (interestFailingStore) AddInterest(context.Context, string, string) error {
	return apperrors.ErrStorageUnavailable
}

func TestHandleMessage_InterestFailureDoesNotDegradeTurn(t *testing.T) {
	ai := &fakeAI{reply: "unused"}
	o := New(
		interestFailingStore{Store: session.NewMemoryStore()},
		knowledge.NewDefaultMatcher(),
		inventory.NewSearcher(5),
		staticCatalog{cars: testCars()},
		ai,
		logger.NewTestLogger(t),
	)

	result, err := o.HandleMessage(context.Background(), "s-1", "do you have a honda civic?")
	require.NoError(t, err)

	assert.Equal(t, BranchInventory, result.Branch)
	assert.False(t, result.Degraded)
	assert.Contains(t, result.Reply, "Civic")
}

func TestHandleMessage_FlagCompletionBeatsEverything(t *testing.T) {
	ai := &fakeAI{reply: "unused"}
	o, store := newTestOrchestrator(t, ai)
	ctx := context.Background()

	_, err := o.HandleMessage(ctx, "s-1", "show me a honda civic")
	require.NoError(t, err)

	// The phone arrives in a message that would otherwise hit the KB.
	result, err := o.HandleMessage(ctx, "s-1", "warranty info? my number is 0300-1234567")
	require.NoError(t, err)

	assert.Equal(t, BranchFlagCompletion, result.Branch)
	assert.Contains(t, result.Reply, "03001234567")
	assert.Equal(t, "03001234567", result.Lead.Phone)

	has, err := store.HasFlag(ctx, "s-1", models.FlagAwaitingPhone)
	require.NoError(t, err)
	assert.False(t, has, "flag cleared after completion")
}

func TestHandleMessage_BudgetQueryFiltersInventory(t *testing.T) {
	ai := &fakeAI{reply: "unused"}
	o, _ := newTestOrchestrator(t, ai)

	result, err := o.HandleMessage(context.Background(),
		"s-1", "Hi, I'm looking for a car under 2,000,000, my name is Ali")
	require.NoError(t, err)

	assert.Equal(t, BranchInventory, result.Branch)
	require.Len(t, result.MatchedCars, 1)
	assert.Equal(t, "car-3", result.MatchedCars[0].ID)
	assert.Equal(t, "Ali", result.Lead.Name)
	require.NotNil(t, result.Lead.Budget)
	assert.Equal(t, 2000000.0, result.Lead.Budget.Max)
}

func TestHandleMessage_CompletionBranch(t *testing.T) {
	ai := &fakeAI{reply: "We're a family-run dealership since 1998."}
	o, _ := newTestOrchestrator(t, ai)

	result, err := o.HandleMessage(context.Background(), "s-1", "tell me about your dealership history")
	require.NoError(t, err)

	assert.Equal(t, BranchCompletion, result.Branch)
	assert.Equal(t, "We're a family-run dealership since 1998.", result.Reply)
	require.Equal(t, 1, ai.calls)
	assert.Contains(t, ai.prompts[0], "tell me about your dealership history")
	assert.Contains(t, ai.prompts[0], "Toyota Corolla", "prompt carries the inventory snapshot")
}

func TestHandleMessage_PromptCarriesHistoryAndLead(t *testing.T) {
	ai := &fakeAI{reply: "sure"}
	o, _ := newTestOrchestrator(t, ai)
	ctx := context.Background()

	_, err := o.HandleMessage(ctx, "s-1", "What's your warranty policy?")
	require.NoError(t, err)
	_, err = o.HandleMessage(ctx, "s-1", "my name is Ali, tell me something interesting")
	require.NoError(t, err)

	require.Equal(t, 1, ai.calls)
	prompt := ai.prompts[0]
	assert.Contains(t, prompt, "warranty", "history includes the earlier turn")
	assert.Contains(t, prompt, "Name: Ali", "lead facts injected")
}

func TestHandleMessage_ProviderFailureFallsBack(t *testing.T) {
	ai := &fakeAI{err: &completion.ProviderError{Kind: completion.FailureTimeout}}
	o, store := newTestOrchestrator(t, ai)

	result, err := o.HandleMessage(context.Background(), "s-1", "tell me a story")
	require.NoError(t, err)

	assert.Equal(t, BranchFallback, result.Branch)
	assert.Contains(t, result.Reply, "0300-1234567")
	assert.Contains(t, result.Reply, "I can help with:")

	// The failed turn is still part of the transcript.
	history, err := store.History(context.Background(), "s-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestHandleMessage_InvalidInput(t *testing.T) {
	ai := &fakeAI{}
	o, _ := newTestOrchestrator(t, ai)

	_, err := o.HandleMessage(context.Background(), "s-1", "   ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = o.HandleMessage(context.Background(), "", "hello")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestHandleMessage_StorageOutageDegrades(t *testing.T) {
	ai := &fakeAI{reply: "still answering"}
	o := New(
		failingStore{},
		knowledge.NewDefaultMatcher(),
		inventory.NewSearcher(5),
		staticCatalog{cars: testCars()},
		ai,
		logger.NewTestLogger(t),
	)

	result, err := o.HandleMessage(context.Background(), "s-1", "tell me about servicing costs, my name is Ali")
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.NotEmpty(t, result.Reply)
	assert.Equal(t, "Ali", result.Lead.Name, "extraction still runs in degraded mode")
}

func TestHandleMessage_LeadSinkFiresOnceOnQualification(t *testing.T) {
	ai := &fakeAI{reply: "ok"}
	sink := &recordingSink{}
	o, _ := newTestOrchestrator(t, ai, WithLeadSink(sink))
	ctx := context.Background()

	_, err := o.HandleMessage(ctx, "s-1", "my name is Ali, what do you have")
	require.NoError(t, err)
	assert.Empty(t, sink.leads, "name alone is not qualified")

	_, err = o.HandleMessage(ctx, "s-1", "my number is 0300-1234567")
	require.NoError(t, err)
	require.Len(t, sink.leads, 1)
	assert.Equal(t, "Ali", sink.leads[0].Name)
	assert.Equal(t, "03001234567", sink.leads[0].Phone)

	_, err = o.HandleMessage(ctx, "s-1", "email is ali@example.com")
	require.NoError(t, err)
	assert.Len(t, sink.leads, 1, "already-qualified leads don't re-fire")
}

func TestBuildPrompt_CapsInventory(t *testing.T) {
	var catalog []models.CarListing
	for i := 0; i < 15; i++ {
		catalog = append(catalog, models.CarListing{Make: "Make", Model: "Model", Year: 2020, Price: 1000000})
	}

	prompt := BuildPrompt(catalog, nil, models.Lead{}, "hi")
	assert.Contains(t, prompt, "...and 5 more listings")
	assert.Equal(t, promptMaxListings, strings.Count(prompt, "- Make Model"))
}
