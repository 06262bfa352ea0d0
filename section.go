package intake

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-intake/internal/hydrate"
	"github.com/goliatone/go-intake/layering"
)

// SectionDefinition declares one wizard section.
type SectionDefinition struct {
	ID          string
	Title       string
	Fields      []FieldDescriptor
	Collections []CollectionDescriptor
	Rules       []Rule
	Refinements []Refinement
}

type sectionCollection struct {
	desc   CollectionDescriptor
	schema *Schema
}

// Section is a compiled, immutable section definition.
type Section struct {
	id          string
	title       string
	schema      *Schema
	collections []sectionCollection
	collIndex   map[string]int
	toggles     map[string][]string
	names       []string
	rules       *RuleSet
	refinements []compiledRefinement
	clock       func() time.Time
	newID       func() string
	logger      *slog.Logger
	decoder     *hydrate.Decoder[hydrate.Section]
	// list names the collection a section saves as a bare list. It is set
	// when the section has no top-level fields and exactly one collection.
	list string
}

func compileSection(def SectionDefinition, cfg config, env compileEnv) (*Section, error) {
	id := strings.TrimSpace(def.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: section id must not be empty", ErrInvalidDefinition)
	}
	if id == ReviewID {
		return nil, fmt.Errorf("%w: section id %q is reserved", ErrInvalidDefinition, id)
	}
	schema, err := NewSchema(def.Fields...)
	if err != nil {
		return nil, fmt.Errorf("section %q: %w", id, err)
	}
	schema.withClock(cfg.clock)

	section := &Section{
		id:        id,
		title:     def.Title,
		schema:    schema,
		collIndex: map[string]int{},
		toggles:   map[string][]string{},
		clock:     cfg.clock,
		newID:     cfg.newID,
		logger:    cfg.logger.With(slog.String("section", id)),
	}
	if section.title == "" {
		section.title = id
	}

	known := map[string]bool{}
	roots := map[string]bool{}
	for _, name := range schema.Names() {
		known[name] = true
		roots[rootOf(name)] = true
	}
	for _, name := range schema.Names() {
		if strings.Contains(name, ".") && known[rootOf(name)] {
			return nil, definitionError(id, "field %q nests under field %q", name, rootOf(name))
		}
	}
	for _, desc := range def.Collections {
		if desc.Name == "" || strings.Contains(desc.Name, ".") {
			return nil, definitionError(id, "collection name %q is invalid", desc.Name)
		}
		if known[desc.Name] || roots[desc.Name] {
			return nil, definitionError(id, "collection %q clashes with a field", desc.Name)
		}
		entrySchema, err := NewSchema(desc.Fields...)
		if err != nil {
			return nil, fmt.Errorf("section %q collection %q: %w", id, desc.Name, err)
		}
		entrySchema.withClock(cfg.clock)
		if desc.Max <= 0 {
			desc.Max = DefaultMaxEntries
		}
		if desc.Initial > desc.Max {
			return nil, definitionError(id, "collection %q starts with more entries than its maximum", desc.Name)
		}
		if desc.Toggle != "" {
			field, err := schema.DescribeField(desc.Toggle)
			if err != nil || field.Type != FieldBoolean {
				return nil, definitionError(id, "collection %q toggle %q must be a boolean field", desc.Name, desc.Toggle)
			}
			section.toggles[desc.Toggle] = append(section.toggles[desc.Toggle], desc.Name)
		}
		desc.Fields = entrySchema.Fields()
		section.collIndex[desc.Name] = len(section.collections)
		section.collections = append(section.collections, sectionCollection{desc: desc, schema: entrySchema})
		known[desc.Name] = true
		roots[desc.Name] = true
	}

	section.names = append(schema.Names(), section.collectionNames()...)
	env.variables = sortedKeys(roots)

	section.rules, err = newRuleSet(id, def.Rules, section.names, env)
	if err != nil {
		return nil, err
	}
	for _, conflict := range section.rules.Conflicts() {
		section.logger.Debug("visibility rules conflict; narrower trigger wins",
			slog.String("target", conflict.Target),
			slog.Any("rules", conflict.Rules))
	}
	for _, ref := range def.Refinements {
		compiled, err := compileRefinement(id, ref, known, env)
		if err != nil {
			return nil, err
		}
		section.refinements = append(section.refinements, compiled)
	}

	shape := hydrate.Shape{Fields: schema.Names()}
	for _, coll := range section.collections {
		shape.Collections = append(shape.Collections, hydrate.CollectionShape{
			Name:   coll.desc.Name,
			Fields: coll.schema.Names(),
			Max:    coll.desc.Max,
		})
	}
	hooks := []hydrate.DecoderOption[hydrate.Section]{hydrate.WithPostHook(hydrate.Report(section.reportDiscarded))}
	for _, migrate := range cfg.migrationsFor(id) {
		hooks = append(hooks, hydrate.WithPreHook[hydrate.Section](migrate))
	}
	section.decoder = hydrate.NewSectionDecoder(shape, hooks...)
	if len(schema.fields) == 0 && len(section.collections) == 1 {
		section.list = section.collections[0].desc.Name
	}
	return section, nil
}

func (s *Section) ID() string    { return s.id }
func (s *Section) Title() string { return s.title }

// Schema returns the top-level field schema.
func (s *Section) Schema() *Schema { return s.schema }

// Rules returns the compiled visibility rules.
func (s *Section) Rules() *RuleSet { return s.rules }

// Names lists fields then collections in declaration order.
func (s *Section) Names() []string { return slices.Clone(s.names) }

// Collections returns the collection descriptors with defaults applied.
func (s *Section) Collections() []CollectionDescriptor {
	out := make([]CollectionDescriptor, len(s.collections))
	for i, coll := range s.collections {
		out[i] = coll.desc
	}
	return out
}

// Collection returns one collection descriptor and its entry schema.
func (s *Section) Collection(name string) (CollectionDescriptor, *Schema, error) {
	i, ok := s.collIndex[name]
	if !ok {
		return CollectionDescriptor{}, nil, fmt.Errorf("%w: %s.%s", ErrUnknownCollection, s.id, name)
	}
	return s.collections[i].desc, s.collections[i].schema, nil
}

// RefinementAnchors lists the anchors of the section refinements in order.
func (s *Section) RefinementAnchors() []string {
	out := make([]string, len(s.refinements))
	for i, ref := range s.refinements {
		out[i] = ref.Anchor
	}
	return out
}

func (s *Section) Conflicts() []Conflict { return s.rules.Conflicts() }

func (s *Section) collectionNames() []string {
	names := make([]string, len(s.collections))
	for i, coll := range s.collections {
		names[i] = coll.desc.Name
	}
	return names
}

// NewState returns a fresh working copy holding schema defaults. Collections
// start with their Initial entry count when their toggle (if any) is on.
func (s *Section) NewState() *SectionState {
	st := s.emptyState()
	for _, coll := range s.collections {
		if coll.desc.Toggle != "" && !truthy(st.values[coll.desc.Toggle]) {
			continue
		}
		for i := 0; i < coll.desc.Initial; i++ {
			st.collections[coll.desc.Name].Append(nil)
		}
	}
	return st
}

func (s *Section) emptyState() *SectionState {
	st := &SectionState{
		section:     s,
		values:      s.schema.Defaults(),
		collections: make(map[string]*Collection, len(s.collections)),
	}
	for _, coll := range s.collections {
		st.collections[coll.desc.Name] = newCollection(coll.desc, coll.schema, s.newID)
	}
	return st
}

// Hydrate rebuilds working state from a stored payload. Unknown keys are
// dropped, missing keys take defaults and over-long collections are
// truncated. Stored values are not validated here; stale data surfaces as
// field errors on the next validation. A nil payload hydrates as empty; a
// payload of the wrong shape is an ErrInvalidPayload.
func (s *Section) Hydrate(payload any) (*SectionState, error) {
	source, err := s.object(payload)
	if err != nil {
		return nil, err
	}
	decoded, err := s.decoder.Decode(hydrate.Context{Section: s.id}, source)
	if err != nil {
		return nil, err
	}

	st := s.emptyState()
	for name, value := range decoded.Fields {
		st.values[name] = value
	}
	for _, coll := range s.collections {
		name := coll.desc.Name
		entries, present := decoded.Collections[name]
		if !present {
			if coll.desc.Toggle == "" || truthy(st.values[coll.desc.Toggle]) {
				for i := 0; i < coll.desc.Initial; i++ {
					st.collections[name].Append(nil)
				}
			}
			continue
		}
		for _, entry := range entries {
			st.collections[name].Append(entry)
		}
	}
	return st, nil
}

func (s *Section) reportDiscarded(_ hydrate.Context, dropped []string, truncated map[string]int) {
	if len(dropped) > 0 {
		s.logger.Debug("dropped undeclared payload keys", slog.Any("paths", dropped))
	}
	for name, cut := range truncated {
		s.logger.Debug("truncated stored collection", slog.String("collection", name), slog.Int("dropped_entries", cut))
	}
}

func (s *Section) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

// ActiveFields computes the active names for st.
func (s *Section) ActiveFields(st *SectionState) FieldSet {
	active, err := s.rules.ActiveFields(st.Values(), s.now())
	if err != nil {
		s.logger.Warn("visibility rule evaluation failed", slog.String("error", err.Error()))
	}
	return active
}

// Result is the outcome of validating a section.
type Result struct {
	Section string                 `json:"section"`
	Valid   bool                   `json:"valid"`
	Active  []string               `json:"active"`
	Fields  map[string]FieldResult `json:"fields"`
	Issues  []Issue                `json:"issues,omitempty"`

	active FieldSet
}

// IsActive reports whether name was active when the result was computed.
func (r Result) IsActive(name string) bool { return r.active.Has(name) }

// Errors maps every invalid path to its message.
func (r Result) Errors() map[string]string {
	out := map[string]string{}
	for path, field := range r.Fields {
		if !field.Valid {
			out[path] = field.Message
		}
	}
	return out
}

// Validate runs field checks over active fields and entries, then the
// refinements anchored on active names. Inactive fields are reported valid.
func (s *Section) Validate(st *SectionState) Result {
	active := s.ActiveFields(st)
	result := Result{
		Section: s.id,
		Valid:   true,
		Active:  active.Sorted(),
		Fields:  map[string]FieldResult{},
		active:  active,
	}
	fail := func(path string, issue Issue) {
		issue.Path = path
		result.Valid = false
		result.Issues = append(result.Issues, issue)
		result.Fields[path] = FieldResult{Code: issue.Code, Message: issue.Message}
	}

	for _, field := range s.schema.fields {
		if !active.Has(field.Name) {
			result.Fields[field.Name] = validResult()
			continue
		}
		if issue := s.schema.check(field, st.values[field.Name]); issue != nil {
			fail(field.Name, *issue)
			continue
		}
		result.Fields[field.Name] = validResult()
	}

	for _, coll := range s.collections {
		name := coll.desc.Name
		result.Fields[name] = validResult()
		if !active.Has(name) {
			continue
		}
		collection := st.collections[name]
		for _, id := range collection.order {
			values := collection.values[id]
			for _, field := range coll.schema.fields {
				path := EntryPath(name, id, field.Name)
				if issue := coll.schema.check(field, values[field.Name]); issue != nil {
					fail(path, *issue)
					continue
				}
				result.Fields[path] = validResult()
			}
		}
	}

	values := st.Values()
	now := s.now()
	for _, ref := range s.refinements {
		if !active.Has(ref.Anchor) {
			continue
		}
		ok, err := ref.holds(values, now)
		if err != nil {
			s.logger.Warn("refinement evaluation failed", slog.String("refinement", ref.Name), slog.String("error", err.Error()))
		}
		if ok {
			continue
		}
		issue := Issue{Code: ref.Code, Message: ref.Message}
		if current := result.Fields[ref.Anchor]; !current.Valid {
			// Keep the first error on the anchor; still record the issue.
			result.Issues = append(result.Issues, Issue{Path: ref.Anchor, Code: issue.Code, Message: issue.Message})
			continue
		}
		fail(ref.Anchor, issue)
	}
	return result
}

// Payload renders the active, present values of st as the object saved for
// the section. Dotted names nest; collections become lists of entry objects
// without their ids.
func (s *Section) Payload(st *SectionState, active FieldSet) map[string]any {
	out := map[string]any{}
	for _, field := range s.schema.fields {
		if !active.Has(field.Name) {
			continue
		}
		value := st.values[field.Name]
		if isAbsent(value) {
			continue
		}
		setPath(out, field.Name, layering.Clone(value))
	}
	for _, coll := range s.collections {
		name := coll.desc.Name
		if !active.Has(name) {
			continue
		}
		collection := st.collections[name]
		list := make([]any, 0, collection.Len())
		for _, id := range collection.order {
			entry := map[string]any{}
			for _, field := range coll.schema.fields {
				value := collection.values[id][field.Name]
				if isAbsent(value) {
					continue
				}
				setPath(entry, field.Name, layering.Clone(value))
			}
			list = append(list, entry)
		}
		out[name] = list
	}
	return out
}

// Slot converts a payload rendered by Payload into the value stored in the
// record slot. Sections saving a bare list store the entry list.
func (s *Section) Slot(payload map[string]any) any {
	if s.list == "" {
		return payload
	}
	if list, ok := payload[s.list]; ok {
		return list
	}
	return []any{}
}

// object accepts both slot shapes and returns the payload object.
func (s *Section) object(payload any) (map[string]any, error) {
	switch typed := payload.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		if typed == nil {
			return map[string]any{}, nil
		}
		return typed, nil
	case []any, []map[string]any:
		if s.list != "" {
			return map[string]any{s.list: typed}, nil
		}
	}
	return nil, fmt.Errorf("%w: section %s stores %s, got %T", ErrInvalidPayload, s.id, s.slotKind(), payload)
}

func (s *Section) slotKind() string {
	if s.list != "" {
		return "a list or an object"
	}
	return "an object"
}

// Check validates a payload without touching any wizard: it hydrates the
// payload, validates it and returns the result alongside the payload that
// would be saved.
func (s *Section) Check(_ context.Context, payload any) (Result, map[string]any, error) {
	st, err := s.Hydrate(payload)
	if err != nil {
		return Result{}, nil, err
	}
	result := s.Validate(st)
	return result, s.Payload(st, result.active), nil
}

// SectionState is the in-memory working copy of one section.
type SectionState struct {
	section     *Section
	values      map[string]any
	collections map[string]*Collection
}

func (st *SectionState) Section() *Section { return st.section }

// Get returns the current value of a top-level field.
func (st *SectionState) Get(name string) (any, error) {
	if !st.section.schema.Has(name) {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, st.section.id, name)
	}
	return layering.Clone(st.values[name]), nil
}

// Set assigns a top-level field. Switching a collection toggle off clears
// the collection; switching it on with no entries appends one default
// entry. Re-sending the current toggle value changes nothing. Values of
// fields that become inactive are kept.
func (st *SectionState) Set(name string, value any) error {
	if !st.section.schema.Has(name) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, st.section.id, name)
	}
	was := truthy(st.values[name])
	st.values[name] = layering.Clone(value)
	on := truthy(value)
	if was == on {
		return nil
	}
	for _, collName := range st.section.toggles[name] {
		collection := st.collections[collName]
		if !on {
			collection.Clear()
			continue
		}
		if collection.Len() == 0 {
			collection.Append(nil)
		}
	}
	return nil
}

// Append adds an entry to collection name. Like a full collection, a
// collection whose toggle is off rejects the append with ok == false.
func (st *SectionState) Append(name string, defaults map[string]any) (id string, ok bool, err error) {
	collection, err := st.Collection(name)
	if err != nil {
		return "", false, err
	}
	if !st.Open(name) {
		return "", false, nil
	}
	id, ok = collection.Append(defaults)
	return id, ok, nil
}

// Open reports whether collection name accepts entries: it has no toggle
// or its toggle is on.
func (st *SectionState) Open(name string) bool {
	i, ok := st.section.collIndex[name]
	if !ok {
		return false
	}
	toggle := st.section.collections[i].desc.Toggle
	return toggle == "" || truthy(st.values[toggle])
}

// Collection returns the live collection controller for name.
func (st *SectionState) Collection(name string) (*Collection, error) {
	collection, ok := st.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownCollection, st.section.id, name)
	}
	return collection, nil
}

// Values returns a read-only view of the state.
func (st *SectionState) Values() Values {
	collections := make(map[string][]map[string]any, len(st.collections))
	for name, collection := range st.collections {
		collections[name] = collection.entryValues()
	}
	return Values{fields: st.values, collections: collections}
}

// Clone returns a detached copy.
func (st *SectionState) Clone() *SectionState {
	out := &SectionState{
		section:     st.section,
		values:      layering.CloneMap(st.values),
		collections: make(map[string]*Collection, len(st.collections)),
	}
	for name, collection := range st.collections {
		out.collections[name] = collection.clone()
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}
