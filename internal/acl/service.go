package acl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/sentra-id/sentra/internal/audit"
	"github.com/sentra-id/sentra/internal/auth"
	"github.com/sentra-id/sentra/internal/observability"
	"github.com/sentra-id/sentra/internal/shared"
)

// maxChainDepth bounds parent resolution so a corrupted parent cycle cannot
// spin the evaluator.
const maxChainDepth = 16

// Service resolves principals to SIDs, assembles ACL chains and evaluates
// access decisions.
type Service struct {
	logger    *slog.Logger
	store     Store
	cache     *Cache
	evaluator *Evaluator
	auditor   audit.Recorder
	metrics   *observability.Metrics
	group     singleflight.Group
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, store Store, cache *Cache) *Service {
	return &Service{
		logger:    logger,
		store:     store,
		cache:     cache,
		evaluator: NewEvaluator(logger),
		auditor:   audit.NopRecorder{},
	}
}

// WithAuditor attaches an audit recorder.
func (s *Service) WithAuditor(rec audit.Recorder) *Service {
	if rec != nil {
		s.auditor = rec
	}
	return s
}

// WithMetrics attaches decision metrics.
func (s *Service) WithMetrics(m *observability.Metrics) *Service {
	s.metrics = m
	return s
}

// Check decides whether the caller may perform an operation needing one of
// the required permissions on the object. A missing ACL or an exhausted
// chain is an ordinary denial, not an error. adminMode suppresses the audit
// record of the decision.
func (s *Service) Check(ctx context.Context, object ObjectIdentity, required []Permission, username string, roles []auth.Role, adminMode bool) (bool, error) {
	if len(required) == 0 {
		return false, errors.New("acl: at least one permission is required")
	}
	sids := SIDsFor(username, roles)

	list, err := s.ReadACL(ctx, object)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.recordDecision(ctx, object, username, false, "no acl", adminMode)
			return false, nil
		}
		return false, err
	}

	granted, err := s.evaluator.IsGranted(list, required, sids, adminMode)
	if err != nil {
		if errors.Is(err, ErrNoApplicableEntry) {
			s.recordDecision(ctx, object, username, false, "no applicable entry", adminMode)
			return false, nil
		}
		return false, err
	}
	detail := ""
	if !granted {
		detail = "denied by entry"
	}
	s.recordDecision(ctx, object, username, granted, detail, adminMode)
	return granted, nil
}

// ReadACL assembles the ACL chain for the object, reading each node through
// the cache. Concurrent reads of one object collapse into a single store
// fetch.
func (s *Service) ReadACL(ctx context.Context, object ObjectIdentity) (*ACL, error) {
	var (
		root *ACL
		tail *ACL
	)
	next := &object
	for depth := 0; next != nil; depth++ {
		if depth >= maxChainDepth {
			return nil, fmt.Errorf("acl: parent chain for %s exceeds depth %d", object, maxChainDepth)
		}
		node, err := s.readNode(ctx, *next)
		if err != nil {
			if root != nil && errors.Is(err, shared.ErrNotFound) {
				// A dangling parent reference ends the chain.
				break
			}
			return nil, err
		}
		assembled := &ACL{
			ID:            node.ID,
			Object:        node.Object,
			Entries:       node.Entries,
			InheritParent: node.InheritParent,
		}
		if root == nil {
			root = assembled
		} else {
			tail.Parent = assembled
		}
		tail = assembled
		if !node.InheritParent {
			break
		}
		next = node.Parent
	}
	if root == nil {
		return nil, shared.ErrNotFound
	}
	return root, nil
}

// CreateACL stores a new ACL for an object identity.
func (s *Service) CreateACL(ctx context.Context, node Node) error {
	if node.Object.Zero() {
		return errors.New("acl: object identity is required")
	}
	if err := validateEntries(node.Entries); err != nil {
		return err
	}
	sortEntries(node.Entries)
	if err := s.store.CreateACL(ctx, node); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, node.Object)
	return nil
}

// UpdateACL replaces an object's entire ACL.
func (s *Service) UpdateACL(ctx context.Context, node Node) error {
	if err := validateEntries(node.Entries); err != nil {
		return err
	}
	sortEntries(node.Entries)
	if err := s.store.UpdateACL(ctx, node); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, node.Object)
	return nil
}

// InsertEntry adds one entry at the given position, pushing colliding
// entries down.
func (s *Service) InsertEntry(ctx context.Context, object ObjectIdentity, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if err := s.store.InsertEntry(ctx, object, entry); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, object)
	return nil
}

// UpdateEntry rewrites the entry at its position.
func (s *Service) UpdateEntry(ctx context.Context, object ObjectIdentity, entry Entry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if err := s.store.UpdateEntry(ctx, object, entry); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, object)
	return nil
}

// DeleteEntry removes the entry at the given position without renumbering
// the survivors.
func (s *Service) DeleteEntry(ctx context.Context, object ObjectIdentity, position int) error {
	if err := s.store.DeleteEntry(ctx, object, position); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, object)
	return nil
}

func (s *Service) readNode(ctx context.Context, object ObjectIdentity) (*Node, error) {
	if node, ok := s.cache.Get(ctx, object); ok {
		return node, nil
	}
	value, err, _ := s.group.Do(object.String(), func() (any, error) {
		node, err := s.store.ReadNode(ctx, object)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, node)
		return node, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Node), nil
}

func (s *Service) recordDecision(ctx context.Context, object ObjectIdentity, username string, granted bool, detail string, adminMode bool) {
	result := "granted"
	action := audit.ActionAccessGranted
	if !granted {
		result = "denied"
		action = audit.ActionAccessDenied
	}
	s.metrics.ObserveACLDecision(result)
	if adminMode {
		return
	}
	s.auditor.Record(ctx, audit.Entry{
		Actor:      username,
		Action:     action,
		ObjectType: object.Type,
		ObjectID:   object.ID,
		Detail:     detail,
	})
}

func validateEntries(entries []Entry) error {
	seen := make(map[int]struct{}, len(entries))
	for _, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return err
		}
		if _, dup := seen[entry.Position]; dup {
			return fmt.Errorf("acl: duplicate position %d", entry.Position)
		}
		seen[entry.Position] = struct{}{}
	}
	return nil
}

func validateEntry(entry Entry) error {
	if entry.Position < 0 {
		return fmt.Errorf("acl: negative position %d", entry.Position)
	}
	if !entry.Permission.Valid() {
		return fmt.Errorf("acl: invalid permission %d", entry.Permission)
	}
	if entry.SID == "" {
		return errors.New("acl: entry sid is required")
	}
	return nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Position < entries[j].Position
	})
}
