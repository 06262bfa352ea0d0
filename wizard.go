package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/goliatone/go-intake/layering"
	"github.com/goliatone/go-intake/pkg/activity"
	"github.com/goliatone/go-intake/pkg/state"
)

// ReviewID addresses the terminal review position in Select.
const ReviewID = "review"

// Wizard walks a registry of sections, holding the working state of the
// active section and saving validated sections into a record store.
//
// The active section is hydrated from the store whenever it is entered, so
// unsaved edits are discarded on navigation. A Wizard is safe for concurrent
// use; calls are serialized.
type Wizard struct {
	mu       sync.Mutex
	registry *Registry
	store    state.Store
	key      string
	cfg      config
	emitter  *activity.Emitter
	logger   *slog.Logger

	position int
	current  *SectionState
}

// NewWizard starts on the first registered section, hydrated from store.
func NewWizard(ctx context.Context, registry *Registry, store state.Store, opts ...Option) (*Wizard, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("%w: wizard needs a registry with sections", ErrInvalidDefinition)
	}
	if store == nil {
		return nil, errors.New("intake: wizard needs a record store")
	}
	cfg := applyOptions(opts)
	w := &Wizard{
		registry: registry,
		store:    store,
		key:      state.KeyOf(store),
		cfg:      cfg,
		emitter: activity.NewEmitter(cfg.hooks, activity.Config{
			Enabled: cfg.hooks.Enabled(),
			Channel: cfg.channel,
		}),
		logger: cfg.logger.With(slog.String("record_key", state.KeyOf(store))),
	}
	if err := w.enter(ctx, 0); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Wizard) Registry() *Registry { return w.registry }

// Policy returns the navigation policy in force.
func (w *Wizard) Policy() NavigationPolicy { return w.cfg.navigation }

// Current returns the active section id, or ReviewID at the review position.
func (w *Wizard) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentID()
}

func (w *Wizard) currentID() string {
	if w.current == nil {
		return ReviewID
	}
	return w.current.section.id
}

// Select jumps to the section id (or ReviewID).
func (w *Wizard) Select(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	target := w.registry.Len()
	if id != ReviewID {
		i, ok := w.registry.Position(id)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSection, id)
		}
		target = i
	}
	return w.moveTo(ctx, target)
}

// Next moves to the following section, or to review from the last one. It
// does nothing at review.
func (w *Wizard) Next(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.moveTo(ctx, min(w.position+1, w.registry.Len()))
}

// Previous moves to the preceding section. It does nothing on the first one.
func (w *Wizard) Previous(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.moveTo(ctx, max(w.position-1, 0))
}

func (w *Wizard) moveTo(ctx context.Context, target int) error {
	if target == w.position {
		return nil
	}
	if target > w.position && w.cfg.navigation == NavigationRequireValid && w.current != nil {
		if result := w.current.section.Validate(w.current); !result.Valid {
			return fmt.Errorf("%w: %s", ErrNavigationBlocked, w.current.section.id)
		}
	}
	return w.enter(ctx, target)
}

// enter makes target the active position. On a store failure the wizard
// stays where it was.
func (w *Wizard) enter(ctx context.Context, target int) error {
	if target >= w.registry.Len() {
		w.position = w.registry.Len()
		w.current = nil
		w.logger.Debug("entered review")
		return nil
	}
	section := w.registry.sections[target]
	st, err := w.hydrate(ctx, section)
	if err != nil {
		return err
	}
	w.position = target
	w.current = st
	w.logger.Debug("entered section", slog.String("section", section.id))
	return nil
}

func (w *Wizard) hydrate(ctx context.Context, section *Section) (*SectionState, error) {
	record, ok, err := w.store.Read(ctx)
	if err != nil {
		w.logger.Error("record read failed", slog.String("section", section.id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("intake: load section %s: %w", section.id, err)
	}
	if !ok {
		return section.NewState(), nil
	}
	payload, saved := record.Subsection(section.id)
	if !saved {
		return section.NewState(), nil
	}
	return section.Hydrate(payload)
}

func (w *Wizard) active() (*SectionState, error) {
	if w.current == nil {
		return nil, ErrNoActiveSection
	}
	return w.current, nil
}

// SetField assigns a top-level field of the active section.
func (w *Wizard) SetField(name string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.active()
	if err != nil {
		return err
	}
	return st.Set(name, value)
}

// AppendEntry adds an entry to a collection of the active section. ok is
// false when the collection is full or its toggle is off.
func (w *Wizard) AppendEntry(collection string, defaults map[string]any) (id string, ok bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.active()
	if err != nil {
		return "", false, err
	}
	return st.Append(collection, defaults)
}

// RemoveEntry drops an entry. Unknown ids are ignored.
func (w *Wizard) RemoveEntry(collection, id string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.active()
	if err != nil {
		return false, err
	}
	coll, err := st.Collection(collection)
	if err != nil {
		return false, err
	}
	return coll.Remove(id), nil
}

func (w *Wizard) SetEntryField(collection, id, field string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.active()
	if err != nil {
		return err
	}
	coll, err := st.Collection(collection)
	if err != nil {
		return err
	}
	return coll.Set(id, field, value)
}

// Validate validates the active section.
func (w *Wizard) Validate() (Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.active()
	if err != nil {
		return Result{}, err
	}
	return st.section.Validate(st), nil
}

// Reset restores the active section to its defaults without touching the
// store.
func (w *Wizard) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.active()
	if err != nil {
		return err
	}
	w.current = st.section.NewState()
	return nil
}

// Reload discards edits and rehydrates the active section from the store.
func (w *Wizard) Reload(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.active()
	if err != nil {
		return err
	}
	fresh, err := w.hydrate(ctx, st.section)
	if err != nil {
		return err
	}
	w.current = fresh
	return nil
}

// SaveOutcome reports a save attempt. A rejected save carries the
// validation result; Payload is what was (or would have been) written.
type SaveOutcome struct {
	Section string `json:"section"`
	Saved   bool   `json:"saved"`
	Result  Result `json:"result"`
	Payload any    `json:"payload,omitempty"`
}

// Save validates the active section and, when valid, writes its payload as
// a partial update of the record. Validation failures are reported in the
// outcome with a nil error. Store failures are returned and leave the
// working state untouched so the save can be retried.
func (w *Wizard) Save(ctx context.Context) (SaveOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.active()
	if err != nil {
		return SaveOutcome{}, err
	}
	section := st.section
	result := section.Validate(st)
	outcome := SaveOutcome{Section: section.id, Result: result}
	if !result.Valid {
		w.logger.Debug("save rejected", slog.String("section", section.id), slog.Int("issues", len(result.Issues)))
		w.emit(ctx, activity.BuildSectionRejectedEvent(w.eventInput(section.id, nil, result.Errors())))
		return outcome, nil
	}
	payload := section.Payload(st, result.active)
	outcome.Payload = section.Slot(payload)
	if err := w.store.UpdateSubsection(ctx, section.id, outcome.Payload); err != nil {
		w.logger.Error("section save failed", slog.String("section", section.id), slog.String("error", err.Error()))
		return outcome, fmt.Errorf("intake: save section %s: %w", section.id, err)
	}
	outcome.Saved = true
	w.logger.Info("section saved", slog.String("section", section.id))
	w.emit(ctx, activity.BuildSectionSavedEvent(w.eventInput(section.id, sortedPayloadKeys(payload), nil)))
	return outcome, nil
}

// Record reads the whole stored record.
func (w *Wizard) Record(ctx context.Context) (state.Record, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Read(ctx)
}

// ReplaceRecord overwrites the stored record. Subsections are checked
// against the registry; the active section is rehydrated afterwards.
func (w *Wizard) ReplaceRecord(ctx context.Context, record state.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, name := range record.Names() {
		if _, ok := w.registry.Position(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSection, name)
		}
	}
	if err := w.store.Replace(ctx, record); err != nil {
		return fmt.Errorf("intake: replace record: %w", err)
	}
	w.emit(ctx, activity.BuildRecordReplacedEvent(w.eventInput("", record.Names(), nil)))
	if w.current == nil {
		return nil
	}
	fresh, err := w.hydrate(ctx, w.current.section)
	if err != nil {
		return err
	}
	w.current = fresh
	return nil
}

// DeleteRecord deletes the stored record and resets the active section.
func (w *Wizard) DeleteRecord(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.store.Delete(ctx); err != nil {
		return fmt.Errorf("intake: delete record: %w", err)
	}
	if w.current != nil {
		w.current = w.current.section.NewState()
	}
	w.logger.Info("record deleted")
	w.emit(ctx, activity.BuildRecordDeletedEvent(w.eventInput("", nil, nil)))
	return nil
}

// SectionStatus summarises one section for the review screen.
type SectionStatus struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Saved bool   `json:"saved"`
	// Valid reports whether the stored payload validates against the
	// current definition. It is false for unsaved sections.
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Review reports per-section status of the stored record.
func (w *Wizard) Review(ctx context.Context) ([]SectionStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	record, _, err := w.store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("intake: review: %w", err)
	}
	out := make([]SectionStatus, 0, w.registry.Len())
	for _, section := range w.registry.sections {
		status := SectionStatus{ID: section.id, Title: section.title}
		payload, saved := record.Subsection(section.id)
		if saved {
			status.Saved = true
			st, err := section.Hydrate(payload)
			if errors.Is(err, ErrInvalidPayload) {
				status.Errors = map[string]string{section.id: err.Error()}
				out = append(out, status)
				continue
			}
			if err != nil {
				return nil, err
			}
			result := section.Validate(st)
			status.Valid = result.Valid
			if !result.Valid {
				status.Errors = result.Errors()
			}
		}
		out = append(out, status)
	}
	return out, nil
}

// View is the read-only view model of the wizard for a rendering layer.
type View struct {
	Section     string             `json:"section"`
	Title       string             `json:"title,omitempty"`
	Position    int                `json:"position"`
	Review      bool               `json:"review"`
	Navigation  []SectionInfo      `json:"navigation"`
	Values      map[string]any     `json:"values,omitempty"`
	Collections map[string][]Entry `json:"collections,omitempty"`
	Full        map[string]bool    `json:"full,omitempty"`
	Active      []string           `json:"active,omitempty"`
	Errors      map[string]string  `json:"errors,omitempty"`
	Valid       bool               `json:"valid"`
}

// View renders the current position. Values include inactive fields; the
// active list tells the renderer what to show.
func (w *Wizard) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	view := View{
		Section:    w.currentID(),
		Position:   w.position,
		Review:     w.current == nil,
		Navigation: w.registry.Describe(),
	}
	if w.current == nil {
		view.Title = "Review"
		return view
	}
	st := w.current
	result := st.section.Validate(st)
	view.Title = st.section.title
	view.Values = layering.CloneMap(st.values)
	view.Collections = make(map[string][]Entry, len(st.collections))
	view.Full = make(map[string]bool, len(st.collections))
	for name, coll := range st.collections {
		view.Collections[name] = coll.Reindex()
		view.Full[name] = coll.Full()
	}
	view.Active = result.Active
	view.Errors = result.Errors()
	view.Valid = result.Valid
	return view
}

func (w *Wizard) eventInput(section string, fields []string, errs map[string]string) activity.RecordEventInput {
	return activity.RecordEventInput{
		ActorID:    w.cfg.actorID,
		TenantID:   w.cfg.tenantID,
		RecordKey:  w.key,
		Section:    section,
		Fields:     fields,
		Errors:     errs,
		OccurredAt: w.cfg.clock(),
	}
}

// emit notifies activity hooks. Hook failures are logged, not returned.
func (w *Wizard) emit(ctx context.Context, event activity.Event) {
	if err := w.emitter.Emit(ctx, event); err != nil {
		w.logger.Warn("activity hook failed", slog.String("verb", event.Verb), slog.String("error", err.Error()))
	}
}

func sortedPayloadKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
